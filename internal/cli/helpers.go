package cli

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	ProjectKind = "project"
	WaveKind    = "wave"
	GapKind     = "gap"
	PassKind    = "pass"
)

var (
	pluralKinds = map[string]string{
		ProjectKind: "projects",
		WaveKind:    "waves",
		GapKind:     "gaps",
		PassKind:    "passes",
	}
)

// parseAndValidateKindId splits TYPE or TYPE/ID. Only projects are addressed by id.
func parseAndValidateKindId(arg string) (string, *uuid.UUID, error) {
	kind, idStr, _ := strings.Cut(arg, "/")
	kind = singular(kind)
	if _, ok := pluralKinds[kind]; !ok {
		return "", nil, fmt.Errorf("invalid resource kind: %s", kind)
	}
	if len(idStr) == 0 {
		return kind, nil, nil
	}
	if kind != ProjectKind {
		return "", nil, fmt.Errorf("%s cannot be read by id, list them with --project", plural(kind))
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return "", nil, fmt.Errorf("invalid ID: %w", err)
	}
	return kind, &id, nil
}

func singular(kind string) string {
	for singular, plural := range pluralKinds {
		if kind == plural {
			return singular
		}
	}
	return kind
}

func plural(kind string) string {
	return pluralKinds[kind]
}
