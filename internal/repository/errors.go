package repository

import "errors"

// ErrNotCompliant is returned when a repository's tree does not match the
// structure its category requires.
var ErrNotCompliant = errors.New("repository structure is not compliant")

// ErrArchived is returned for archived upstream repositories.
var ErrArchived = errors.New("repository is archived")

// ErrBlacklisted is returned when the repository is on the blacklist.
var ErrBlacklisted = errors.New("repository is blacklisted")

// ErrIncompatible is returned when the hacs.json minimum Home Assistant
// version is newer than the host.
var ErrIncompatible = errors.New("home assistant version is not compatible")
