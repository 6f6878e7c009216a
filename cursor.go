package queryengine

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

const cursorVersion = 1

// cursorPayload is the decoded shape of an opaque pagination cursor (§4.3).
// Field names are kept short because they are serialized verbatim into the
// token.
type cursorPayload struct {
	V int    `json:"v"`
	S string `json:"s"`           // sort column, "" when unsorted
	D string `json:"d"`           // sort direction; only checked on decode when sorted
	R int64  `json:"r"`           // anchor rowid
	N bool   `json:"n,omitempty"` // anchor sort value is null
	K any    `json:"k,omitempty"` // anchor sort value, omitted when unsorted or null
}

// EncodeCursor builds the opaque token for a page boundary: the last
// retained row's rowid plus, when sorted, its sort-column value.
func EncodeCursor(sortColumn string, sortDir SortDirection, rowID int64, sortValue any, sortValueIsNull bool) (string, error) {
	p := cursorPayload{
		V: cursorVersion,
		S: sortColumn,
		D: string(sortDir),
		R: rowID,
	}
	if sortColumn != "" {
		p.N = sortValueIsNull
		if !sortValueIsNull {
			p.K = sortValue
		}
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "", NewInternalError("failed to encode cursor", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeCursor decodes and validates a cursor token against the page
// request's current sort contract. Any failure (bad base64, bad JSON,
// version mismatch, stale sort column/direction) is an InvalidRequest
// EngineError; a stale sort column or direction means the caller changed
// the sort mid-pagination and must restart (§4.3).
func DecodeCursor(token string, expectSortColumn string, expectSortDir SortDirection) (*cursorPayload, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(token, "="))
	if err != nil {
		return nil, invalidCursor("malformed cursor encoding")
	}
	var p cursorPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, invalidCursor("malformed cursor payload")
	}
	if p.V != cursorVersion {
		return nil, invalidCursor("unsupported cursor version")
	}
	if p.S != expectSortColumn {
		return nil, invalidCursor("cursor sort column does not match current request")
	}
	if expectSortColumn != "" && p.D != string(expectSortDir) {
		return nil, invalidCursor("cursor sort direction does not match current request")
	}
	return &p, nil
}

func invalidCursor(message string) error {
	return NewInvalidRequestError(ErrCodeInvalidCursor, message)
}
