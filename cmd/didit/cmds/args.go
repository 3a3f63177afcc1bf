package cmds

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/maxg/didit-sub000/internal/diditerrors"
	"github.com/maxg/didit-sub000/internal/types"
)

// Layout accepted for sweep times besides RFC 3339, read in local time
const localTimeLayout = "2006-01-02T15:04"

// Spec from `kind proj users [rev]` arguments, with users joined by "-"
func parseSpec(args []string) (types.Spec, error) {
	spec := types.Spec{Kind: args[0], Proj: args[1], Users: strings.Split(args[2], "-")}
	if len(args) > 3 {
		spec.Rev = args[3]
	}
	if err := spec.Validate(); err != nil {
		return types.Spec{}, diditerrors.ExitErrorWrap(types.ExitUsage, err)
	}
	return spec, nil
}

func parseWhen(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(localTimeLayout, s, time.Local)
	if err != nil {
		return time.Time{}, diditerrors.ExitErrorWrap(types.ExitUsage,
			fmt.Errorf("bad time %q, want RFC 3339 or %s", s, localTimeLayout))
	}
	return t, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
