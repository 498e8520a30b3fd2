package serializer

import (
	"errors"

	odatajson "github.com/reoring/odatajson"
)

// ODataError is the body of an OData error payload.
type ODataError struct {
	Code    string
	Message string
	Target  string
	Details []ErrorDetail
	// InnerError is service-defined debugging information, written as a
	// plain JSON tree.
	InnerError  map[string]any
	Annotations []odatajson.InstanceAnnotation
}

type ErrorDetail struct {
	Code    string
	Message string
	Target  string
}

// ErrorFrom converts err into an ODataError. Codec errors keep their code
// and parameters; anything else becomes an "internal" error.
func ErrorFrom(err error) ODataError {
	var e *odatajson.Error
	if errors.As(err, &e) {
		oe := ODataError{Code: e.Code, Message: e.Message}
		if len(e.Params) > 0 {
			oe.InnerError = map[string]any{"category": e.Category.String(), "params": e.Params}
		}
		return oe
	}
	return ODataError{Code: "internal", Message: err.Error()}
}

// WriteError writes {"error":{...}}. Instance annotations on the error are
// written regardless of the annotation filter.
func (s *Serializer) WriteError(oe ODataError) error {
	if err := s.jw.StartObject(); err != nil {
		return err
	}
	if err := s.jw.WriteName("error"); err != nil {
		return err
	}
	if err := s.jw.StartObject(); err != nil {
		return err
	}
	if err := s.writeStringProp("code", oe.Code); err != nil {
		return err
	}
	if err := s.writeStringProp("message", oe.Message); err != nil {
		return err
	}
	if oe.Target != "" {
		if err := s.writeStringProp("target", oe.Target); err != nil {
			return err
		}
	}
	if len(oe.Details) > 0 {
		if err := s.writeDetails(oe.Details); err != nil {
			return err
		}
	}
	if oe.InnerError != nil {
		if err := s.jw.WriteName("innererror"); err != nil {
			return err
		}
		if err := s.jw.WriteJSONTree(oe.InnerError); err != nil {
			return err
		}
	}
	if err := s.ann.WriteInstanceAnnotationsForError(oe.Annotations); err != nil {
		return err
	}
	if err := s.jw.EndObject(); err != nil {
		return err
	}
	return s.jw.EndObject()
}

func (s *Serializer) writeDetails(details []ErrorDetail) error {
	if err := s.jw.WriteName("details"); err != nil {
		return err
	}
	if err := s.jw.StartArray(); err != nil {
		return err
	}
	for _, d := range details {
		if err := s.jw.StartObject(); err != nil {
			return err
		}
		if err := s.writeStringProp("code", d.Code); err != nil {
			return err
		}
		if err := s.writeStringProp("message", d.Message); err != nil {
			return err
		}
		if d.Target != "" {
			if err := s.writeStringProp("target", d.Target); err != nil {
				return err
			}
		}
		if err := s.jw.EndObject(); err != nil {
			return err
		}
	}
	return s.jw.EndArray()
}
