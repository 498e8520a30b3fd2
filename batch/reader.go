package batch

import (
	"io"
	"strings"

	json "github.com/goccy/go-json"

	odatajson "github.com/reoring/odatajson"
)

// Operation is one entry of a parsed batch payload.
type Operation struct {
	ContentID      string
	AtomicityGroup string
	DependsOn      []string
	Method         string
	URL            string
	Status         int
	Headers        map[string]string
	// Body is the raw JSON value of "body", or nil when absent.
	Body json.RawMessage
}

// Changeset is a run of operations sharing an atomicity group.
type Changeset struct {
	GroupID    string
	Operations []*Operation
}

// Batch is a parsed batch payload. Operations holds every operation in
// payload order; Changesets groups those that carry an atomicity group.
type Batch struct {
	Responses  bool
	Operations []*Operation
	Changesets []*Changeset
}

type wireOperation struct {
	ID             string            `json:"id"`
	AtomicityGroup string            `json:"atomicityGroup"`
	DependsOn      []string          `json:"dependsOn"`
	Method         string            `json:"method"`
	URL            string            `json:"url"`
	Status         int               `json:"status"`
	Headers        map[string]string `json:"headers"`
	Body           json.RawMessage   `json:"body"`
}

type wireBatch struct {
	Requests  *[]wireOperation `json:"requests"`
	Responses *[]wireOperation `json:"responses"`
}

func invalidPayload(detail string) *odatajson.Error {
	return odatajson.NewError(odatajson.CodeInvalidBatchPayload, "detail", detail)
}

// ReadBatch parses a JSON batch payload and checks the Content-ID rules the
// writer enforces: unique ids, contiguous atomicity groups, no GET inside a
// changeset and resolvable dependsOn references.
func ReadBatch(r io.Reader) (*Batch, error) {
	var wb wireBatch
	dec := json.NewDecoder(r)
	if err := dec.Decode(&wb); err != nil {
		return nil, invalidPayload(err.Error()).WithCause(err)
	}
	var entries []wireOperation
	b := &Batch{}
	switch {
	case wb.Requests != nil && wb.Responses != nil:
		return nil, invalidPayload("both requests and responses present")
	case wb.Requests != nil:
		entries = *wb.Requests
	case wb.Responses != nil:
		entries = *wb.Responses
		b.Responses = true
	default:
		return nil, invalidPayload("missing requests or responses array")
	}

	ids := newRegistry()
	var open *Changeset
	closeOpen := func() {
		if open != nil {
			ids.closeGroup(open.GroupID)
			open = nil
		}
	}
	for i := range entries {
		e := &entries[i]
		op := &Operation{
			ContentID:      e.ID,
			AtomicityGroup: e.AtomicityGroup,
			DependsOn:      e.DependsOn,
			Method:         strings.ToUpper(e.Method),
			URL:            e.URL,
			Status:         e.Status,
			Headers:        e.Headers,
			Body:           e.Body,
		}
		if err := checkEntry(op, b.Responses); err != nil {
			return nil, err
		}
		if open == nil || open.GroupID != op.AtomicityGroup {
			closeOpen()
			if op.AtomicityGroup != "" {
				if err := ids.openGroup(op.AtomicityGroup); err != nil {
					return nil, invalidPayload("atomicity group " + op.AtomicityGroup + " is not contiguous").WithCause(err)
				}
				open = &Changeset{GroupID: op.AtomicityGroup}
				b.Changesets = append(b.Changesets, open)
			}
		}
		if err := ids.resolveAll(op.DependsOn, op.AtomicityGroup); err != nil {
			return nil, err
		}
		if ref, ok := referencedID(op.URL); ok {
			if err := ids.resolve(ref, op.AtomicityGroup); err != nil {
				return nil, err
			}
		}
		if op.ContentID != "" {
			if err := ids.addContentID(op.ContentID, op.AtomicityGroup); err != nil {
				return nil, err
			}
		}
		if open != nil {
			open.Operations = append(open.Operations, op)
		}
		b.Operations = append(b.Operations, op)
	}
	return b, nil
}

func checkEntry(op *Operation, responses bool) error {
	if responses {
		if op.Status == 0 {
			return invalidPayload("response without status")
		}
		return nil
	}
	if op.Method == "" || op.URL == "" {
		return invalidPayload("request without method or url")
	}
	if op.AtomicityGroup != "" {
		if op.Method == "GET" {
			return odatajson.NewError(odatajson.CodeMethodInChangeset, "method", op.Method)
		}
		if op.ContentID == "" {
			return odatajson.NewError(odatajson.CodeContentIDRequired)
		}
	}
	return nil
}
