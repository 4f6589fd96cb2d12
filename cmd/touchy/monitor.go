package main

import (
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/san-kum/touchy/internal/session"
	"github.com/san-kum/touchy/internal/viz"
	"github.com/spf13/cobra"
)

func runMonitor(cmd *cobra.Command, args []string) error {
	model := ""
	if len(args) == 1 {
		model = args[0]
	}
	cfg, err := loadConfig(cmd, model)
	if err != nil {
		return err
	}
	// the terminal belongs to the monitor
	initLog(cmd, cfg, io.Discard)

	drv, sess, err := openSession(cfg, false)
	if err != nil {
		return err
	}

	m, err := cfg.ForceModel()
	if err != nil {
		sess.Shutdown()
		return err
	}
	if err := sess.Start(m.Kind, cfg.GetSphere()); err != nil {
		sess.Shutdown()
		return fmt.Errorf("start %s: %w (status %d)", m.Kind, err, session.StatusCode(err))
	}

	p := tea.NewProgram(viz.NewMonitor(sess, drv, theme), tea.WithAltScreen())
	_, runErr := p.Run()

	if err := sess.Stop(); err != nil {
		fmt.Printf("stop: %v (status %d)\n", err, session.StatusCode(err))
	}
	if err := sess.Shutdown(); err != nil {
		return fmt.Errorf("shutdown: %w (status %d)", err, session.StatusCode(err))
	}
	return runErr
}
