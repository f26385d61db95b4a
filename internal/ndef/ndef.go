// Package ndef models the proximity-tag payload pushed by reader hardware
// and decodes it into the shape the acquirer confirmation endpoint expects.
package ndef

import (
	"encoding/hex"
	"unicode/utf8"
)

// Unparsed is the sentinel carried by records whose payload could not be
// decoded. A degraded record never aborts its siblings or the detection.
const Unparsed = "<unparsed>"

// RawRecord is one tag record as delivered by the reader bridge. Data holds
// the undecoded payload bytes.
type RawRecord struct {
	RecordType string `json:"recordType"`
	MediaType  string `json:"mediaType,omitempty"`
	Encoding   string `json:"encoding,omitempty"`
	Data       []byte `json:"data"`
}

// Record is a decoded record ready to be sent as part of nfc_payload.
// Degraded marks records that fell back to the Unparsed sentinel.
type Record struct {
	RecordType string `json:"recordType"`
	MediaType  string `json:"mediaType,omitempty"`
	Data       string `json:"data"`
	Degraded   bool   `json:"-"`
}

// Message is one full detection: every record read from the tag.
type Message struct {
	Records []RawRecord `json:"records"`
}

// Decode converts a raw record on a best-effort basis: text records decode
// as UTF-8, raw byte records fall back to a hex string, anything else
// degrades to the Unparsed sentinel. It never fails.
func Decode(r RawRecord) Record {
	out := Record{RecordType: r.RecordType, MediaType: r.MediaType}
	switch {
	case r.RecordType == "text" && utf8.Valid(r.Data):
		out.Data = string(r.Data)
	case len(r.Data) > 0:
		out.Data = hex.EncodeToString(r.Data)
	default:
		out.Data = Unparsed
		out.Degraded = true
	}
	return out
}

// DecodeAll decodes every record independently; one degraded record does
// not affect the others.
func DecodeAll(raws []RawRecord) []Record {
	out := make([]Record, 0, len(raws))
	for _, r := range raws {
		out = append(out, Decode(r))
	}
	return out
}
