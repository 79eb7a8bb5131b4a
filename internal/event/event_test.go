package event

import (
	"bytes"
	"testing"
)

// Known-good event published to a public relay; the id and sig were produced
// by an independent implementation, so they pin the canonical encoding.
func sampleEvent() Event {
	return Event{
		ID:        "4dc5e11a899e3a0496a31955a486a74800ba6d756e40fe0ceb67e3930bcb5dc6",
		PubKey:    "ae8ef5576370b5cb91d262cf0d31d5ce9f5ca26c3ad2d56d5c58f6023633e453",
		CreatedAt: 1725316278,
		Kind:      1,
		Tags: [][]string{
			{"e", "f14669da001fc23052bbfa3e4124699a85dc14b3ecb65023a86ed16a317c1cc3", "", "root"},
			{"e", "32928056b07792e9a92193720c67d3458351ea66fbc568cdc87be41a5faa92ce", "wss://nos.lol", "reply"},
			{"p", "2f5759825226f1d57ef1652ba66114b2f938f7f5c50dc505708e5d8b31e4f3c9"},
		},
		Content: "Thank you!",
		Sig:     "44b4b5e4087504f7ca44bb72cb89c119e680f459739a476023a036075e93a5219dc21380fbda14af4c5008185c1fc86a08acb433fb7097eff175cc81174a345c",
	}
}

func TestComputeID_KnownVector(t *testing.T) {
	ev := sampleEvent()
	if got := ev.ComputeID(); got != ev.ID {
		t.Fatalf("expected id %s, got %s", ev.ID, got)
	}
}

func TestSerialize_Deterministic(t *testing.T) {
	ev := sampleEvent()
	a := ev.Serialize()
	b := ev.Serialize()
	if !bytes.Equal(a, b) {
		t.Fatal("canonical serialization is not deterministic")
	}
}

func TestSerialize_EscapeRules(t *testing.T) {
	cases := []struct {
		content string
		want    string
	}{
		{"Line\nBreak", `[0,"pubkey",1234567890,1,[],"Line\nBreak"]`},
		{`Double"Quote`, `[0,"pubkey",1234567890,1,[],"Double\"Quote"]`},
		{`Back\slash`, `[0,"pubkey",1234567890,1,[],"Back\\slash"]`},
		{"Carriage\rReturn", `[0,"pubkey",1234567890,1,[],"Carriage\rReturn"]`},
		{"Tab\tCharacter", `[0,"pubkey",1234567890,1,[],"Tab\tCharacter"]`},
		{"Back\bspace", `[0,"pubkey",1234567890,1,[],"Back\bspace"]`},
		{"Form\fFeed", `[0,"pubkey",1234567890,1,[],"Form\fFeed"]`},
	}
	for _, tc := range cases {
		ev := Event{PubKey: "pubkey", CreatedAt: 1234567890, Kind: 1, Tags: [][]string{}, Content: tc.content}
		if got := string(ev.Serialize()); got != tc.want {
			t.Fatalf("content %q: expected %s, got %s", tc.content, tc.want, got)
		}
	}
}

func TestSerialize_NonASCIIVerbatim(t *testing.T) {
	ev := Event{PubKey: "pubkey", CreatedAt: 1, Kind: 1, Tags: [][]string{}, Content: "héllo 세계 🌍"}
	want := `[0,"pubkey",1,1,[],"héllo 세계 🌍"]`
	if got := string(ev.Serialize()); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestSerialize_TagStringsEscaped(t *testing.T) {
	ev := Event{PubKey: "pk", CreatedAt: 7, Kind: 0, Tags: [][]string{{"t", "a\nb"}}, Content: ""}
	want := `[0,"pk",7,0,[["t","a\nb"]],""]`
	if got := string(ev.Serialize()); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestComputeID_MutationChangesID(t *testing.T) {
	base := sampleEvent()

	mutations := []func(*Event){
		func(e *Event) { e.Content = e.Content + "!" },
		func(e *Event) { e.CreatedAt++ },
		func(e *Event) { e.Kind++ },
		func(e *Event) { e.Tags = append(e.Tags, []string{"t", "x"}) },
		func(e *Event) { e.PubKey = "2f5759825226f1d57ef1652ba66114b2f938f7f5c50dc505708e5d8b31e4f3c9" },
	}
	for i, mutate := range mutations {
		ev := sampleEvent()
		mutate(&ev)
		if ev.ComputeID() == base.ID {
			t.Fatalf("mutation %d did not change the id", i)
		}
	}
}

func TestComputeID_TagOrderSignificant(t *testing.T) {
	ev := sampleEvent()
	swapped := sampleEvent()
	swapped.Tags = [][]string{ev.Tags[1], ev.Tags[0], ev.Tags[2]}
	if ev.ComputeID() == swapped.ComputeID() {
		t.Fatal("reordering tags must change the id")
	}
}

func TestValidate(t *testing.T) {
	ev := sampleEvent()
	if !ev.Validate() {
		t.Fatal("well-formed event failed validation")
	}

	bad := sampleEvent()
	bad.ID = bad.ID[:63]
	if bad.Validate() {
		t.Fatal("short id accepted")
	}

	bad = sampleEvent()
	bad.PubKey = "AE8EF5576370B5CB91D262CF0D31D5CE9F5CA26C3AD2D56D5C58F6023633E453"
	if bad.Validate() {
		t.Fatal("uppercase hex pubkey accepted")
	}

	bad = sampleEvent()
	bad.Sig = bad.Sig[:127] + "g"
	if bad.Validate() {
		t.Fatal("non-hex sig accepted")
	}

	bad = sampleEvent()
	bad.Kind = MaxKind + 1
	if bad.Validate() {
		t.Fatal("out-of-range kind accepted")
	}

	bad = sampleEvent()
	bad.Tags = [][]string{nil}
	if bad.Validate() {
		t.Fatal("null tag accepted")
	}
}
