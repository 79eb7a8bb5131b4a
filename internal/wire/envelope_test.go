package wire

import (
	"encoding/json"
	"testing"

	"github.com/chorus-relay/chorus/internal/event"
	"github.com/chorus-relay/chorus/internal/filter"
)

func TestParse_Event(t *testing.T) {
	raw := `["EVENT",{"id":"aa","pubkey":"bb","created_at":100,"kind":1,"tags":[["e","cc"]],"content":"hi","sig":"dd"}]`
	env, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parse EVENT: %v", err)
	}
	ee, ok := env.(EventEnvelope)
	if !ok {
		t.Fatalf("expected EventEnvelope, got %T", env)
	}
	if ee.Event.Kind != 1 || ee.Event.Content != "hi" || len(ee.Event.Tags) != 1 {
		t.Fatalf("event decoded wrong: %+v", ee.Event)
	}
}

func TestParse_Req(t *testing.T) {
	raw := `["REQ","sub1",{"kinds":[1],"limit":10}]`
	env, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parse REQ: %v", err)
	}
	re, ok := env.(ReqEnvelope)
	if !ok {
		t.Fatalf("expected ReqEnvelope, got %T", env)
	}
	if re.SubscriptionID != "sub1" {
		t.Fatalf("expected sub1, got %q", re.SubscriptionID)
	}
	if len(re.Filter.Kinds) != 1 || re.Filter.Kinds[0] != 1 {
		t.Fatalf("filter decoded wrong: %+v", re.Filter)
	}
	if re.Filter.Limit == nil || *re.Filter.Limit != 10 {
		t.Fatal("limit decoded wrong")
	}
}

func TestParse_Close(t *testing.T) {
	env, err := Parse([]byte(`["CLOSE","sub1"]`))
	if err != nil {
		t.Fatalf("parse CLOSE: %v", err)
	}
	ce, ok := env.(CloseEnvelope)
	if !ok {
		t.Fatalf("expected CloseEnvelope, got %T", env)
	}
	if ce.SubscriptionID != "sub1" {
		t.Fatalf("expected sub1, got %q", ce.SubscriptionID)
	}
}

func TestParse_UnknownTag(t *testing.T) {
	env, err := Parse([]byte(`["AUTH","challenge"]`))
	if err != nil {
		t.Fatalf("unknown tag must not error: %v", err)
	}
	ue, ok := env.(UnknownEnvelope)
	if !ok {
		t.Fatalf("expected UnknownEnvelope, got %T", env)
	}
	if ue.Tag != "AUTH" {
		t.Fatalf("expected AUTH, got %q", ue.Tag)
	}
}

func TestParse_Malformed(t *testing.T) {
	cases := []string{
		`not json`,
		`{"type":"EVENT"}`,
		`[]`,
		`[42]`,
		`["EVENT"]`,
		`["EVENT","not-an-object"]`,
		`["REQ","sub1"]`,
		`["REQ","sub1",["not","an","object"]]`,
		`["REQ","",{}]`,
		`["REQ",17,{}]`,
		`["CLOSE"]`,
		`["CLOSE",17]`,
	}
	for _, raw := range cases {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Fatalf("expected parse error for %s", raw)
		}
	}
}

func TestEventFrame_RoundTrip(t *testing.T) {
	ev := event.Event{ID: "aa", PubKey: "bb", CreatedAt: 7, Kind: 1, Tags: [][]string{}, Content: "x", Sig: "cc"}
	data, err := EventFrame("s1", &ev)
	if err != nil {
		t.Fatalf("encode event frame: %v", err)
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil || len(arr) != 3 {
		t.Fatalf("delivery frame is not a 3-element array: %s", data)
	}
	var tag, sub string
	if err := json.Unmarshal(arr[0], &tag); err != nil || tag != "EVENT" {
		t.Fatalf("expected EVENT tag, got %s", arr[0])
	}
	if err := json.Unmarshal(arr[1], &sub); err != nil || sub != "s1" {
		t.Fatalf("expected s1 subscription id, got %s", arr[1])
	}
	var back event.Event
	if err := json.Unmarshal(arr[2], &back); err != nil {
		t.Fatalf("decode delivered event: %v", err)
	}
	if back.ID != ev.ID || back.Content != ev.Content {
		t.Fatalf("delivered event mangled: %+v", back)
	}
}

func TestParseDelivery_RoundTrip(t *testing.T) {
	ev := event.Event{ID: "aa", PubKey: "bb", CreatedAt: 7, Kind: 1, Tags: [][]string{}, Content: "x", Sig: "cc"}
	data, err := EventFrame("s1", &ev)
	if err != nil {
		t.Fatalf("encode event frame: %v", err)
	}
	d, err := ParseDelivery(data)
	if err != nil {
		t.Fatalf("parse delivery: %v", err)
	}
	if d.SubscriptionID != "s1" || d.Event.ID != "aa" {
		t.Fatalf("delivery decoded wrong: %+v", d)
	}
}

func TestParseDelivery_Rejects(t *testing.T) {
	cases := []string{
		`not json`,
		`["EVENT",{"id":"aa"}]`,
		`["NOTICE","s1",{}]`,
		`["EVENT",17,{}]`,
		`["EVENT","s1","not-an-object"]`,
	}
	for _, raw := range cases {
		if _, err := ParseDelivery([]byte(raw)); err == nil {
			t.Fatalf("expected error for %s", raw)
		}
	}
}

func TestReqFrame_ParsesBack(t *testing.T) {
	limit := 3
	f := filter.Filter{Kinds: []uint32{1}, Limit: &limit, Tags: map[string][]string{"e": {"abc"}}}
	data, err := ReqFrame("s1", &f)
	if err != nil {
		t.Fatalf("encode req frame: %v", err)
	}
	env, err := Parse(data)
	if err != nil {
		t.Fatalf("parse encoded req: %v", err)
	}
	re, ok := env.(ReqEnvelope)
	if !ok {
		t.Fatalf("expected ReqEnvelope, got %T", env)
	}
	if len(re.Filter.Tags["e"]) != 1 || re.Filter.Tags["e"][0] != "abc" {
		t.Fatal("tag query lost through encode/parse")
	}
}
