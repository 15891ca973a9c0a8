package api

import "encoding/json"

// BusPosition is a single vehicle record as delivered by the SPPO GPS feed.
// Every field is untrusted text: coordinates may use a comma decimal
// separator and datahora is the epoch timestamp in milliseconds (UTC).
type BusPosition struct {
	Ordem      FeedString `json:"ordem"`
	Linha      FeedString `json:"linha"`
	Latitude   FeedString `json:"latitude"`
	Longitude  FeedString `json:"longitude"`
	DataHora   FeedString `json:"datahora"`
	Velocidade FeedString `json:"velocidade"`
}

// FeedString tolerates the feed's habit of switching fields between JSON
// strings and bare numbers across payload revisions. Either form decodes to
// its textual value; parsing to a concrete type happens per record in the
// pipeline so that one malformed field never fails the whole payload.
type FeedString string

func (s *FeedString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = FeedString(v)
		return nil
	}
	if string(b) == "null" {
		*s = ""
		return nil
	}
	*s = FeedString(b)
	return nil
}

func (s FeedString) String() string { return string(s) }
