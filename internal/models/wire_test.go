// internal/models/wire_test.go
package models

import (
	"encoding/json"
	"testing"
)

func TestRepliesUnmarshalEmptyString(t *testing.T) {
	var c RawComment
	raw := `{"id":"abc","body":"hello","replies":""}`
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(c.Replies.Comments) != 0 {
		t.Errorf("expected no replies, got %d", len(c.Replies.Comments))
	}
}

func TestRepliesUnmarshalNestedListing(t *testing.T) {
	raw := `{
		"id": "parent1",
		"body": "top",
		"replies": {
			"kind": "Listing",
			"data": {
				"children": [
					{"kind": "t1", "data": {"id": "child1", "body": "reply", "replies": ""}},
					{"kind": "more", "data": {"count": 12}}
				]
			}
		}
	}`

	var c RawComment
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(c.Replies.Comments) != 1 {
		t.Fatalf("expected 1 reply (more stub skipped), got %d", len(c.Replies.Comments))
	}
	if c.Replies.Comments[0].ID != "child1" {
		t.Errorf("expected child1, got %s", c.Replies.Comments[0].ID)
	}
}

func TestEditedUnmarshal(t *testing.T) {
	cases := []struct {
		raw  string
		want bool
	}{
		{`{"edited":false}`, false},
		{`{"edited":true}`, true},
		{`{"edited":1653512300.0}`, true},
	}
	for _, tc := range cases {
		var c RawComment
		if err := json.Unmarshal([]byte(tc.raw), &c); err != nil {
			t.Fatalf("unmarshal %s: %v", tc.raw, err)
		}
		if bool(c.Edited) != tc.want {
			t.Errorf("%s: expected edited=%v", tc.raw, tc.want)
		}
	}
}

func TestSaveSummaryRecord(t *testing.T) {
	var s SaveSummary
	s.Record(SaveInserted, nil)
	s.Record(SaveUpdated, nil)
	s.Record(SaveUpdated, nil)
	s.Record(SaveFailed, json.Unmarshal([]byte("{"), &struct{}{}))

	if s.Inserted != 1 || s.Updated != 2 || s.Failed != 1 {
		t.Errorf("unexpected counts: %+v", s)
	}
	if len(s.Errors) != 1 {
		t.Errorf("expected 1 error message, got %d", len(s.Errors))
	}
	if s.Saved() != 3 {
		t.Errorf("expected 3 saved, got %d", s.Saved())
	}
}
