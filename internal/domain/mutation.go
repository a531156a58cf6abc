package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// BulkAction is the closed set of bulk mutations
type BulkAction string

const (
	BulkAddMoney         BulkAction = "AddMoney"
	BulkAddGems          BulkAction = "AddGems"
	BulkAddRebirthPoints BulkAction = "AddRebirthPoints"
	BulkAddClicks        BulkAction = "AddClicks"
	BulkResetMoney       BulkAction = "ResetMoney"
	BulkResetAllStats    BulkAction = "ResetAllStats"
	BulkBanAll           BulkAction = "BanAll"
	BulkUnbanAll         BulkAction = "UnbanAll"
	BulkDeleteAll        BulkAction = "DeleteAll"
)

// ParseBulkAction validates a raw action name.
func ParseBulkAction(s string) (BulkAction, error) {
	a := BulkAction(s)
	switch a {
	case BulkAddMoney, BulkAddGems, BulkAddRebirthPoints, BulkAddClicks,
		BulkResetMoney, BulkResetAllStats, BulkBanAll, BulkUnbanAll, BulkDeleteAll:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
}

// TakesAmount reports whether the action consumes an amount.
func (a BulkAction) TakesAmount() bool {
	switch a {
	case BulkAddMoney, BulkAddGems, BulkAddRebirthPoints, BulkAddClicks:
		return true
	}
	return false
}

// BulkRequest asks for one action to be applied to many players
type BulkRequest struct {
	PlayerIDs []string   `json:"player_ids"`
	Action    BulkAction `json:"action"`
	Amount    float64    `json:"amount,omitempty"`
}

// BulkFailure records one player the action could not be applied to.
type BulkFailure struct {
	PlayerID string `json:"player_id"`
	Err      error  `json:"-"`
}

// MarshalJSON includes the error text.
func (f BulkFailure) MarshalJSON() ([]byte, error) {
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	return json.Marshal(struct {
		PlayerID string `json:"player_id"`
		Error    string `json:"error"`
	}{f.PlayerID, msg})
}

// BulkResult is the outcome of a best-effort bulk mutation.
// Failures is the partial-failure list; it is never dropped in favour of an error.
type BulkResult struct {
	Action    BulkAction    `json:"action"`
	Requested int           `json:"requested"`
	Succeeded int           `json:"succeeded"`
	Failures  []BulkFailure `json:"failures"`
}

// StepOutcome is the result of one write in a multi-location update.
type StepOutcome struct {
	Path string `json:"path"`
	Err  error  `json:"-"`
}

// OK reports whether the step succeeded.
func (o StepOutcome) OK() bool { return o.Err == nil }

// MarshalJSON includes an ok flag and the error text.
func (o StepOutcome) MarshalJSON() ([]byte, error) {
	out := struct {
		Path  string `json:"path"`
		OK    bool   `json:"ok"`
		Error string `json:"error,omitempty"`
	}{Path: o.Path, OK: o.OK()}
	if o.Err != nil {
		out.Error = o.Err.Error()
	}
	return json.Marshal(out)
}

// Outcomes is an ordered list of step results.
type Outcomes []StepOutcome

// Err returns the first failed step's error, or nil.
func (outs Outcomes) Err() error {
	for _, o := range outs {
		if o.Err != nil {
			return fmt.Errorf("%s: %w", o.Path, o.Err)
		}
	}
	return nil
}

// MutationEvent is an audit record of an operator action.
type MutationEvent struct {
	ID        int64          `json:"id,omitempty"`
	Actor     string         `json:"actor"`
	Action    string         `json:"action"`
	PlayerID  string         `json:"player_id,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	Failed    bool           `json:"failed"`
	CreatedAt time.Time      `json:"created_at"`
}
