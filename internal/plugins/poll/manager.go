package poll

import (
	"fmt"

	"roombot/internal/command"
	"roombot/internal/engine"
	"roombot/internal/storage"

	"go.uber.org/zap"
)

const (
	msgInvalidPoll    = `Invalid poll format. Example: {"title": "Asahi", "question": "Is Asahi nice?", "options": ["Yum", "Nope"]}`
	msgTitleTooLong   = "Title of the poll is too long."
	msgAlreadyExists  = "Poll with that title already exists."
	msgCreated        = "%s - Poll created."
	msgInvalidVote    = "Invalid format. Example: !!poll vote <poll title> <answer number>"
	msgAlreadyVoted   = "You've already voted on this poll."
	msgNoSuchAnswer   = "%s Couldn't find a matching answer."
	msgVoteAdded      = "%s Vote added."
	msgNoSuchPoll     = "Poll does not exist."
	msgNoPolls        = "No polls active."
	msgDeleteNoPoll   = "%s - Poll does not exist."
	msgDeleteNotOwner = "%s - You don't own this poll."
	msgDeleted        = "%s Poll deleted."
)

// Manager implements the poll operations. All state lives in the room's
// storage and every access goes through the handler's session.
type Manager struct {
	logger *zap.Logger
}

// NewManager creates a poll manager
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{logger: logger}
}

func (m *Manager) say(s *engine.Session, cmd *command.Command, text string) error {
	_, err := s.PostMessage(cmd.Room(), text, false)
	return err
}

// Create validates raw as a poll definition and stores the new poll.
func (m *Manager) Create(s *engine.Session, cmd *command.Command, raw string) error {
	def, verr := parseDefinition(raw)
	switch verr {
	case definitionMalformed:
		return m.say(s, cmd, msgInvalidPoll)
	case definitionTitleTooLong:
		return m.say(s, cmd, msgTitleTooLong)
	}

	key := Key(def.Title)
	exists, err := s.Exists(key, cmd.Room())
	if err != nil {
		return err
	}
	if exists {
		return m.say(s, cmd, msgAlreadyExists)
	}

	p := Poll{
		Key:      key,
		Title:    def.Title,
		Question: def.Question,
		Options:  make([]Option, 0, len(def.Options)),
	}
	for _, answer := range def.Options {
		p.Options = append(p.Options, Option{Answer: answer})
	}

	if err := s.Set(key, cmd.Room(), p); err != nil {
		return err
	}
	if err := m.addToList(s, cmd, p); err != nil {
		return err
	}

	m.logger.Info("Poll created",
		zap.String("room", cmd.Room()),
		zap.String("title", p.Title),
		zap.Int("options", len(p.Options)),
		zap.Int64("owner", cmd.UserID()))

	return m.say(s, cmd, fmt.Sprintf(msgCreated, p.Title))
}

func (m *Manager) loadList(s *engine.Session, room string) ([]ListEntry, error) {
	var entries []ListEntry
	err := s.Get(listKey, room, &entries)
	if storage.IsNotFound(err) {
		return nil, nil
	}
	return entries, err
}

func (m *Manager) addToList(s *engine.Session, cmd *command.Command, p Poll) error {
	entries, err := m.loadList(s, cmd.Room())
	if err != nil {
		return err
	}

	normalized := NormalizeTitle(p.Title)
	for _, e := range entries {
		if NormalizeTitle(e.Title) == normalized {
			return nil
		}
	}

	entries = append(entries, ListEntry{
		Title:    p.Title,
		Question: p.Question,
		UserID:   cmd.UserID(),
		UserName: cmd.UserName(),
	})
	return s.Set(listKey, cmd.Room(), entries)
}

// Vote records the acting user's answer. text is "<title> <answer number>".
func (m *Manager) Vote(s *engine.Session, cmd *command.Command, text string) error {
	title, answer, ok := parseVote(text)
	if !ok {
		return m.say(s, cmd, msgInvalidVote)
	}

	key := Key(title)
	exists, err := s.Exists(key, cmd.Room())
	if err != nil {
		return err
	}
	if !exists {
		return m.say(s, cmd, msgNoSuchPoll)
	}

	var voters []int64
	if err := s.Get(votesKey(title), cmd.Room(), &voters); err != nil && !storage.IsNotFound(err) {
		return err
	}
	for _, uid := range voters {
		if uid == cmd.UserID() {
			return m.say(s, cmd, msgAlreadyVoted)
		}
	}

	var p Poll
	if err := s.Get(key, cmd.Room(), &p); err != nil {
		return err
	}

	idx := answer - 1
	if idx < 0 || idx >= len(p.Options) {
		return m.say(s, cmd, fmt.Sprintf(msgNoSuchAnswer, cmd.UserName()))
	}

	p.Options[idx].Score++
	voters = append(voters, cmd.UserID())

	if err := s.Set(votesKey(title), cmd.Room(), voters); err != nil {
		return err
	}
	if err := s.Set(key, cmd.Room(), p); err != nil {
		return err
	}

	return m.say(s, cmd, fmt.Sprintf(msgVoteAdded, cmd.UserName()))
}

// Show posts the poll's question followed by its results chart.
func (m *Manager) Show(s *engine.Session, cmd *command.Command, title string) error {
	key := Key(title)
	exists, err := s.Exists(key, cmd.Room())
	if err != nil {
		return err
	}
	if !exists {
		return m.say(s, cmd, msgNoSuchPoll)
	}

	var p Poll
	if err := s.Get(key, cmd.Room(), &p); err != nil {
		return err
	}

	if err := m.say(s, cmd, p.Question); err != nil {
		return err
	}
	_, err = s.PostMessage(cmd.Room(), FormatChart(p), true)
	return err
}

// List posts every poll in the room.
func (m *Manager) List(s *engine.Session, cmd *command.Command) error {
	exists, err := s.Exists(listKey, cmd.Room())
	if err != nil {
		return err
	}
	if !exists {
		return m.say(s, cmd, msgNoPolls)
	}

	entries, err := m.loadList(s, cmd.Room())
	if err != nil {
		return err
	}
	return m.say(s, cmd, FormatList(entries))
}

// Delete removes a poll the acting user created, with its list entry and
// vote record. A poll missing from the list has no owner to check against.
func (m *Manager) Delete(s *engine.Session, cmd *command.Command, rawTitle string) error {
	title := NormalizeTitle(rawTitle)
	key := Key(title)

	exists, err := s.Exists(key, cmd.Room())
	if err != nil {
		return err
	}
	if !exists {
		return m.say(s, cmd, fmt.Sprintf(msgDeleteNoPoll, title))
	}

	entries, err := m.loadList(s, cmd.Room())
	if err != nil {
		return err
	}
	for _, e := range entries {
		if NormalizeTitle(e.Title) == title && e.UserID != cmd.UserID() {
			return m.say(s, cmd, fmt.Sprintf(msgDeleteNotOwner, title))
		}
	}

	removed, err := s.Unset(key, cmd.Room())
	if err != nil {
		return err
	}
	if !removed {
		m.logger.Warn("Poll vanished before it could be deleted",
			zap.String("room", cmd.Room()),
			zap.String("title", title))
	}

	remaining := make([]ListEntry, 0, len(entries))
	for _, e := range entries {
		if NormalizeTitle(e.Title) != title {
			remaining = append(remaining, e)
		}
	}
	if len(remaining) == 0 {
		if _, err := s.Unset(listKey, cmd.Room()); err != nil {
			return err
		}
	} else if err := s.Set(listKey, cmd.Room(), remaining); err != nil {
		return err
	}

	if _, err := s.Unset(votesKey(title), cmd.Room()); err != nil {
		return err
	}

	m.logger.Info("Poll deleted",
		zap.String("room", cmd.Room()),
		zap.String("title", title),
		zap.Int64("by", cmd.UserID()))

	return m.say(s, cmd, fmt.Sprintf(msgDeleted, title))
}
