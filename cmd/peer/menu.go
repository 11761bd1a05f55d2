package peer

import (
	"context"
	"errors"
	"io"
	"time"

	"go.miragespace.co/filering/chord"
	chordSpec "go.miragespace.co/filering/spec/chord"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/fatih/color"
)

const opTimeout = time.Second * 10

const (
	actionJoin   = "Join the network"
	actionLeave  = "Leave the network"
	actionInsert = "Insert file"
	actionSearch = "Search file"
	actionFinger = "Show finger table"
	actionFiles  = "Show files in this machine"
	actionExit   = "Exit"
)

var actions = []string{
	actionJoin,
	actionLeave,
	actionInsert,
	actionSearch,
	actionFinger,
	actionFiles,
	actionExit,
}

type menu struct {
	ctx   context.Context
	node  *chord.LocalNode
	guard *chord.TerminationGuard
	out   io.Writer
}

var (
	okColor   = color.New(color.FgGreen)
	failColor = color.New(color.FgRed)
	infoColor = color.New(color.FgYellow)
)

func (m *menu) run() error {
	prompt := &survey.Select{
		Message: "What do you want to do?",
		Options: actions,
	}
	for {
		var action string
		if err := survey.AskOne(prompt, &action); err != nil {
			if errors.Is(err, terminal.InterruptErr) {
				m.exit()
				return nil
			}
			return err
		}
		if action == actionExit {
			m.exit()
			return nil
		}
		m.do(action)
	}
}

func (m *menu) do(action string) {
	ctx, cancel := context.WithTimeout(m.ctx, opTimeout)
	defer cancel()

	switch action {
	case actionJoin:
		err := m.node.Join(ctx)
		switch {
		case errors.Is(err, chordSpec.ErrJoinRejected):
			failColor.Fprintf(m.out, "Node id %d is already in use, pick another one\n", m.node.ID())
		case errors.Is(err, chordSpec.ErrJoinInvalidState):
			infoColor.Fprintf(m.out, "Node is already %s\n", m.node.State())
		case err != nil:
			failColor.Fprintf(m.out, "Failed to join: %v\n", err)
		default:
			okColor.Fprintln(m.out, "Joined the network, waiting for live nodes list")
		}

	case actionLeave:
		err := m.node.Leave(ctx)
		switch {
		case errors.Is(err, chordSpec.ErrLeaveInvalidState):
			infoColor.Fprintf(m.out, "Node is %s\n", m.node.State())
		case err != nil:
			failColor.Fprintf(m.out, "Left the network with errors: %v\n", err)
		default:
			okColor.Fprintln(m.out, "Left the network")
		}

	case actionInsert:
		name, ok := m.askFile()
		if !ok {
			return
		}
		key, err := m.node.InsertFile(ctx, name)
		if err != nil {
			failColor.Fprintf(m.out, "Failed to insert %s (key %d): %v\n", name, key, err)
			return
		}
		okColor.Fprintf(m.out, "File %s inserted with key %d\n", name, key)

	case actionSearch:
		name, ok := m.askFile()
		if !ok {
			return
		}
		rid, result, err := m.node.SearchFile(ctx, name)
		if err != nil {
			failColor.Fprintf(m.out, "Failed to search %s: %v\n", name, err)
			return
		}
		if result != nil {
			printResult(m.out, result)
			return
		}
		infoColor.Fprintf(m.out, "[%s] Searching for %s\n", rid, name)

	case actionFinger:
		t := m.node.FingerTable()
		if t == nil {
			infoColor.Fprintf(m.out, "Node is %s, no finger table\n", m.node.State())
			return
		}
		chord.FingerTableWriter(m.out, t).Render()

	case actionFiles:
		chord.FilesTableWriter(m.out, m.node.Files()).Render()
	}
}

func (m *menu) askFile() (string, bool) {
	var name string
	err := survey.AskOne(&survey.Input{
		Message: "File name:",
	}, &name, survey.WithValidator(survey.Required))
	if err != nil {
		if !errors.Is(err, terminal.InterruptErr) {
			failColor.Fprintf(m.out, "Invalid input: %v\n", err)
		}
		return "", false
	}
	return name, true
}

func (m *menu) exit() {
	if ran, err := m.guard.Handoff(); ran && err == nil {
		okColor.Fprintln(m.out, "Left the network")
	}
	color.New(color.FgHiYellow).Fprintln(m.out, "Bye")
}
