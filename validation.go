/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/Seednode/triviabox/rooms"
)

const (
	maxNameLength        = 20
	maxRoomNameLength    = 50
	maxPasswordLength    = 20
	maxDescriptionLength = 200
)

// meetingDomains are the video call providers a room may link to.
var meetingDomains = []string{
	"zoom.us",
	"meet.google.com",
	"teams.microsoft.com",
	"webex.com",
	"discord.gg",
	"discord.com",
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errInvalidInput, fmt.Sprintf(format, args...))
}

// sanitizeText trims s and strips angle brackets.
func sanitizeText(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '<' || r == '>' {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

func validateName(field, s string) (string, error) {
	name := sanitizeText(s)
	if name == "" {
		return "", invalid("%s is required", field)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", invalid("%s must be at most %d characters", field, maxNameLength)
	}
	return name, nil
}

func validateLength(field, s string, limit int) (string, error) {
	out := sanitizeText(s)
	if utf8.RuneCountInString(out) > limit {
		return "", invalid("%s must be at most %d characters", field, limit)
	}
	return out, nil
}

func validateMeetingLink(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}

	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", invalid("zoomLink must be an http or https URL")
	}

	host := strings.ToLower(u.Hostname())
	for _, d := range meetingDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return u.String(), nil
		}
	}
	return "", invalid("zoomLink must point to a supported meeting provider")
}

type createRoomRequest struct {
	HostID          string `json:"hostId"`
	HostName        string `json:"hostName"`
	RoomName        string `json:"roomName"`
	MaxPlayers      int    `json:"maxPlayers"`
	IsPrivate       bool   `json:"isPrivate"`
	IsTeamMode      bool   `json:"isTeamMode"`
	MeetingLink     string `json:"zoomLink"`
	MeetingPassword string `json:"zoomPassword"`
	Description     string `json:"description"`
}

// options checks the request and converts it into registry options.
// The host name is returned sanitized.
func (req createRoomRequest) options(defaultMax int) (string, rooms.Options, error) {
	var opts rooms.Options

	hostName, err := validateName("hostName", req.HostName)
	if err != nil {
		return "", opts, err
	}

	switch {
	case req.MaxPlayers == 0:
		opts.MaxPlayers = defaultMax
	case req.MaxPlayers < minRoomPlayers || req.MaxPlayers > maxRoomPlayers:
		return "", opts, invalid("maxPlayers must be between %d and %d", minRoomPlayers, maxRoomPlayers)
	default:
		opts.MaxPlayers = req.MaxPlayers
	}

	if opts.Name, err = validateLength("roomName", req.RoomName, maxRoomNameLength); err != nil {
		return "", opts, err
	}
	if opts.MeetingLink, err = validateMeetingLink(req.MeetingLink); err != nil {
		return "", opts, err
	}
	if opts.MeetingPassword, err = validateLength("zoomPassword", req.MeetingPassword, maxPasswordLength); err != nil {
		return "", opts, err
	}
	if opts.Description, err = validateLength("description", req.Description, maxDescriptionLength); err != nil {
		return "", opts, err
	}

	opts.IsPrivate = req.IsPrivate
	opts.IsTeamMode = req.IsTeamMode

	return hostName, opts, nil
}
