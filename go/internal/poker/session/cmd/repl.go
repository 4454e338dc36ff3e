package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/mcdev12/planning-poker/go/internal/models"
	"github.com/mcdev12/planning-poker/go/internal/poker"
	"github.com/mcdev12/planning-poker/go/internal/poker/session"
)

const helpText = `commands:
  vote <card>   cast a vote (0 1 2 3 5 8 13 21 ?)
  task <text>   start a new task
  reveal        start the reveal countdown
  reset         clear all votes
  say <text>    send a chat message
  show          print the room
  leave         leave the room
  help          show this help`

// controls is the part of *session.Session the prompt drives.
type controls interface {
	Vote(models.CardValue)
	NewTask(string)
	Reveal()
	Reset()
	SendMessage(string)
	Leave()
	State() (session.State, bool)
}

func readCommands(ctx context.Context, in io.Reader, out io.Writer, s controls) {
	scanner := bufio.NewScanner(in)
	fmt.Fprintln(out, "type `help` for commands")
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		if quit := handleLine(scanner.Text(), out, s); quit {
			return
		}
	}
	// stdin closed
	s.Leave()
}

// handleLine runs one prompt command and reports whether the prompt should
// stop reading.
func handleLine(line string, out io.Writer, s controls) bool {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(cmd) {
	case "":
	case "vote", "v":
		card := models.CardValue(arg)
		if !poker.IsValidCard(card) {
			fmt.Fprintf(out, "not a card: %q\n", arg)
			return false
		}
		s.Vote(card)
	case "task", "t":
		if arg == "" {
			fmt.Fprintln(out, "usage: task <text>")
			return false
		}
		s.NewTask(arg)
	case "reveal", "r":
		st, ok := s.State()
		if ok && !st.CanReveal() {
			fmt.Fprintln(out, "cannot reveal yet: everyone must vote first")
			return false
		}
		s.Reveal()
	case "reset":
		s.Reset()
	case "say", "s":
		if arg == "" {
			return false
		}
		s.SendMessage(arg)
	case "show":
		if st, ok := s.State(); ok {
			printSnapshot(out, st.Room)
		}
	case "leave", "quit", "exit":
		s.Leave()
		return true
	case "help", "?":
		fmt.Fprintln(out, helpText)
	default:
		fmt.Fprintf(out, "unknown command %q; type `help`\n", cmd)
	}
	return false
}

// renderer prints what changed between consecutive session states.
type renderer struct {
	out       io.Writer
	prev      session.State
	seenMsgs  map[string]bool
	connected bool
}

func newRenderer(out io.Writer) *renderer {
	return &renderer{out: out, seenMsgs: map[string]bool{}}
}

func (r *renderer) render(st session.State) {
	defer func() { r.prev = st.Clone() }()

	if st.Connected && !r.connected {
		r.connected = true
		fmt.Fprintf(r.out, "joined %s as %s\n", st.Room.Name, st.Username)
	}

	for _, m := range st.Room.Messages {
		if r.seenMsgs[m.ID] {
			continue
		}
		r.seenMsgs[m.ID] = true
		if m.Type == models.MessageTypeSystem {
			fmt.Fprintf(r.out, "* %s\n", m.Content)
		} else if strings.TrimSpace(m.Content) != "" {
			fmt.Fprintf(r.out, "<%s> %s\n", m.SenderName, m.Content)
		}
	}

	if st.Room.CurrentTask != nil && (r.prev.Room.CurrentTask == nil || *r.prev.Room.CurrentTask != *st.Room.CurrentTask) {
		fmt.Fprintf(r.out, "task: %s\n", *st.Room.CurrentTask)
	}

	if st.Countdown != nil && (r.prev.Countdown == nil || *r.prev.Countdown != *st.Countdown) {
		fmt.Fprintf(r.out, "revealing in %d...\n", *st.Countdown)
	}

	if st.ShowResults() && !r.prev.ShowResults() {
		printVotes(r.out, st.Room, true)
		if avg := st.Average(); avg != nil {
			fmt.Fprintf(r.out, "average: %.1f\n", *avg)
		}
	} else if !st.ShowResults() {
		voted, total := st.VoteProgress()
		pv, pt := r.prev.VoteProgress()
		if voted != pv || total != pt {
			fmt.Fprintf(r.out, "votes: %d/%d\n", voted, total)
		}
	}

	if st.LastError != "" && st.LastError != r.prev.LastError {
		fmt.Fprintf(r.out, "! %s\n", st.LastError)
	}
}

func printSnapshot(out io.Writer, room models.RoomState) {
	fmt.Fprintf(out, "room: %s\n", room.Name)
	if room.CurrentTask != nil {
		fmt.Fprintf(out, "task: %s\n", *room.CurrentTask)
	}
	printVotes(out, room, room.Revealed)
}

func printVotes(out io.Writer, room models.RoomState, revealed bool) {
	names := append([]string{}, room.Participants...)
	sort.Strings(names)
	for _, name := range names {
		vote, ok := room.Votes[name]
		switch {
		case !ok:
			fmt.Fprintf(out, "  %-16s -\n", name)
		case revealed:
			fmt.Fprintf(out, "  %-16s %s\n", name, vote)
		default:
			fmt.Fprintf(out, "  %-16s voted\n", name)
		}
	}
}
