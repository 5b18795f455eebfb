package models

import (
	"strings"
	"time"
)

type Entry struct {
	ID         string `json:"id"`
	Transcript string `json:"transcript"`
	Title      string `json:"title"`
	Tag        string `json:"tag,omitempty"`
	IsDarkSide bool   `json:"isDarkSide"`
	CreatedAt  int64  `json:"createdAt"` // unix millis
	Duration   int    `json:"duration"`  // seconds
	AudioURI   string `json:"audioUri,omitempty"`
}

// Created returns CreatedAt as a time.Time in local time.
func (e Entry) Created() time.Time {
	return time.UnixMilli(e.CreatedAt)
}

// Matches reports whether the lowercased query is a substring of the
// title, transcript or tag.
func (e Entry) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(e.Title), q) ||
		strings.Contains(strings.ToLower(e.Transcript), q) ||
		(e.Tag != "" && strings.Contains(strings.ToLower(e.Tag), q))
}

// EntryPatch is a partial update. Nil fields are left untouched.
type EntryPatch struct {
	Title      *string `json:"title,omitempty"`
	Transcript *string `json:"transcript,omitempty"`
	Tag        *string `json:"tag,omitempty"`
	IsDarkSide *bool   `json:"isDarkSide,omitempty"`
	Duration   *int    `json:"duration,omitempty"`
	AudioURI   *string `json:"audioUri,omitempty"`
}

func (p EntryPatch) Apply(e *Entry) {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Transcript != nil {
		e.Transcript = *p.Transcript
	}
	if p.Tag != nil {
		e.Tag = *p.Tag
	}
	if p.IsDarkSide != nil {
		e.IsDarkSide = *p.IsDarkSide
	}
	if p.Duration != nil {
		e.Duration = *p.Duration
	}
	if p.AudioURI != nil {
		e.AudioURI = *p.AudioURI
	}
}

func (p EntryPatch) Empty() bool {
	return p.Title == nil && p.Transcript == nil && p.Tag == nil &&
		p.IsDarkSide == nil && p.Duration == nil && p.AudioURI == nil
}

// EntryFilter selects entries from the backend.
type EntryFilter struct {
	DarkSide  *bool
	Tag       string
	Search    string
	Ascending bool
	Limit     int
}

func (f EntryFilter) Match(e *Entry) bool {
	if f.DarkSide != nil && e.IsDarkSide != *f.DarkSide {
		return false
	}
	if f.Tag != "" && e.Tag != f.Tag {
		return false
	}
	return e.Matches(f.Search)
}
