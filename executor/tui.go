package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/brensch/atlantis/executor/selfplay"
	tea "github.com/charmbracelet/bubbletea"
)

type EpisodeUpdate struct {
	WorkerID int
	Policy   string
	Result   selfplay.EpisodeResult
	Rows     int
}

type model struct {
	episodesPlayed int
	totalRows      int
	bestScore      int32
	frames         int64
	inferences     int64
	startTime      time.Time
	recent         []string
	updates        chan EpisodeUpdate
}

func initialModel(updates chan EpisodeUpdate) model {
	return model{
		startTime: time.Now(),
		updates:   updates,
	}
}

type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*100, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.updates), tickCmd())
}

func waitForUpdate(updates chan EpisodeUpdate) tea.Cmd {
	return func() tea.Msg {
		return <-updates
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case TickMsg:
		m.frames = totalFrames.Load()
		m.inferences = totalInferences.Load()
		return m, tickCmd()
	case EpisodeUpdate:
		m.episodesPlayed++
		m.totalRows += msg.Rows
		m.bestScore = max(m.bestScore, msg.Result.Score)
		m.recent = append([]string{formatUpdate(msg)}, m.recent...)
		if len(m.recent) > 10 {
			m.recent = m.recent[:10]
		}
		return m, waitForUpdate(m.updates)
	}
	return m, nil
}

func (m model) View() string {
	duration := time.Since(m.startTime)
	var episodesPerSec, framesPerSec, inferencesPerSec float64
	if secs := duration.Seconds(); secs >= 1 {
		episodesPerSec = float64(m.episodesPlayed) / secs
		framesPerSec = float64(m.frames) / secs
		inferencesPerSec = float64(m.inferences) / secs
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Episodes Played:  %d\n", m.episodesPlayed)
	fmt.Fprintf(&b, "Total Rows:       %d\n", m.totalRows)
	fmt.Fprintf(&b, "Best Score:       %d\n", m.bestScore)
	fmt.Fprintf(&b, "Total Frames:     %d\n", m.frames)
	fmt.Fprintf(&b, "Total Inferences: %d\n", m.inferences)
	fmt.Fprintf(&b, "Duration:         %s\n", duration.Round(time.Second))
	fmt.Fprintf(&b, "Episodes/Sec:     %.2f\n", episodesPerSec)
	fmt.Fprintf(&b, "Frames/Sec:       %.2f\n", framesPerSec)
	fmt.Fprintf(&b, "Inferences/Sec:   %.2f\n\n", inferencesPerSec)

	b.WriteString("Recent Episodes:\n")
	for _, g := range m.recent {
		b.WriteString(g + "\n")
	}
	b.WriteString("\nPress q to quit.\n")
	return b.String()
}

func formatUpdate(u EpisodeUpdate) string {
	return fmt.Sprintf("Worker %d (%s): score %d, wave %d, kills %d, frames %d, rows %d",
		u.WorkerID, u.Policy, u.Result.Score, u.Result.Wave+1, u.Result.Kills, u.Result.Frames, u.Rows)
}
