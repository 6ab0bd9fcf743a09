package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// Watcher reports keys of records changed outside this process.
type Watcher interface {
	Watch(ctx context.Context, onChange func(key string)) error
}

// Run starts the browser and blocks until the user quits or ctx is done.
// When w is not nil, external changes to the local record refresh the list.
func Run(ctx context.Context, m *Model, w Watcher) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	m.send = p.Send
	defer m.Close()

	if w != nil {
		if err := w.Watch(ctx, m.StoreChanged); err != nil {
			return err
		}
	}

	_, err := p.Run()
	return err
}
