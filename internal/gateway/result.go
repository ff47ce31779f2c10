package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"tipbridge/internal/custom_err"
)

// Result is the normalized engine reply. Data is either a JSON scalar or an object.
type Result struct {
	OK      bool            `json:"ok"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type envelope struct {
	Error   json.RawMessage `json:"error"`
	Msg     *string         `json:"msg"`
	Message *string         `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func normalize(raw []byte) (Result, error) {
	raw = bytes.TrimSpace(raw)
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Result{}, fmt.Errorf("%w: %v", custom_err.ErrProtocol, err)
	}
	if len(env.Error) == 0 {
		return Result{}, fmt.Errorf("%w: missing error flag", custom_err.ErrProtocol)
	}

	failed, err := parseFlag(env.Error)
	if err != nil {
		return Result{}, err
	}

	res := Result{OK: !failed}
	switch {
	case env.Msg != nil:
		res.Message = *env.Msg
	case env.Message != nil:
		res.Message = *env.Message
	}
	if d := bytes.TrimSpace(env.Data); len(d) > 0 && !bytes.Equal(d, []byte("null")) {
		res.Data = d
	}
	if res.OK && res.Message == "" {
		res.Message = "success"
	}
	return res, nil
}

// parseFlag accepts 0/1, booleans and their quoted forms.
func parseFlag(raw json.RawMessage) (bool, error) {
	s := strings.Trim(string(raw), `"`)
	switch strings.ToLower(s) {
	case "true":
		return true, nil
	case "false", "null", "":
		return false, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return false, fmt.Errorf("%w: error flag %s", custom_err.ErrProtocol, raw)
	}
	return n != 0, nil
}

// Scalar returns Data as a string when it is a JSON string or number.
func (r Result) Scalar() (string, bool) {
	if len(r.Data) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(r.Data, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(r.Data, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

func (r Result) Decode(v any) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("%w: empty data", custom_err.ErrProtocol)
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("%w: %v", custom_err.ErrProtocol, err)
	}
	return nil
}
