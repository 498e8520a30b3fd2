// Package odatajson provides:
//
// - The value model shared by the OData JSON reader and writer (Resource,
//   ResourceSet, Collection, Primitive, Enum, StreamReference, Untyped)
// - A stable error model via Error (code, category, parameters, message)
// - Protocol-version aware naming of odata control information
//
// Design policy:
// - Keep the shared model and error types in the root package; put streaming,
//   type-name decisions, annotation writing and batching in subpackages.
// - Values are a sealed tagged union; writers switch over them exhaustively.
// - Prefer black-box testing against public APIs.
//
// Typical usage:
//
//	jw := jsonwriter.New(w, jsonwriter.Options{IEEE754Compatible: true})
//	s := serializer.New(jw, serializer.Settings{Model: model, Metadata: odatajson.MetadataMinimal})
//	err := s.WriteResource(res, "NS.Customer")
//
//	bw := batch.NewRequestWriter(w, batch.Options{})
//	_ = bw.WriteStartBatch()
//	op, _ := bw.CreateOperationRequestMessage("POST", "Customers", "1", batch.URIAbsolute, nil)
package odatajson
