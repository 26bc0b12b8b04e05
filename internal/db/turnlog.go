package db

import (
	"database/sql"
	"sync"

	"github.com/sirupsen/logrus"
)

// TurnLog records session and turn events under one process root. The first
// event for a session is preceded by a session.started event that becomes
// the parent of everything else the session records. Write failures are
// logged and never reach the caller.
type TurnLog struct {
	db   *sql.DB
	root int64
	log  logrus.FieldLogger

	mu       sync.Mutex
	sessions map[string]int64
}

// NewTurnLog logs a process.started root event with payload and returns a
// TurnLog that files events beneath it.
func NewTurnLog(database *sql.DB, payload map[string]any, log logrus.FieldLogger) (*TurnLog, error) {
	root, err := LogEvent(database, nil, EventProcessStarted, payload)
	if err != nil {
		return nil, err
	}
	return &TurnLog{
		db:       database,
		root:     root,
		log:      log,
		sessions: make(map[string]int64),
	}, nil
}

// RootID is the process.started event id.
func (l *TurnLog) RootID() int64 {
	return l.root
}

// RecordProcess files an event directly under the process root.
func (l *TurnLog) RecordProcess(eventType string, payload map[string]any) {
	if _, err := LogEvent(l.db, &l.root, eventType, payload); err != nil {
		l.log.WithError(err).WithField("event", eventType).Warn("failed to record event")
	}
}

// Record files an event under the session's session.started event.
func (l *TurnLog) Record(sessionID, eventType string, payload map[string]any) {
	parent, ok := l.sessionEvent(sessionID)
	if !ok {
		return
	}
	if _, err := LogEvent(l.db, &parent, eventType, payload); err != nil {
		l.log.WithError(err).WithFields(logrus.Fields{
			"event":   eventType,
			"session": sessionID,
		}).Warn("failed to record event")
	}
}

func (l *TurnLog) sessionEvent(sessionID string) (int64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if id, ok := l.sessions[sessionID]; ok {
		return id, true
	}
	id, err := LogEvent(l.db, &l.root, EventSessionStarted, map[string]any{"session": sessionID})
	if err != nil {
		l.log.WithError(err).WithField("session", sessionID).Warn("failed to record session start")
		return 0, false
	}
	l.sessions[sessionID] = id
	return id, true
}
