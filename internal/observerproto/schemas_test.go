package observerproto_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"marswalk/internal/observerproto"
)

func compile(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	p := filepath.Join("..", "..", "schemas", name)
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

func roundTrip(t *testing.T, v any) any {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func TestSchemas_ValidateSamples(t *testing.T) {
	frameSchema := compile(t, "frame.schema.json")
	bootstrapSchema := compile(t, "bootstrap.schema.json")

	frame := observerproto.FrameMsg{
		Type:            observerproto.TypeFrame,
		ProtocolVersion: observerproto.Version,
		Tick:            12,
		Agents: []observerproto.AgentState{
			{ID: 0, Marker: "@", Pos: [2]int{10, 10}},
			{ID: 5, Pos: [2]int{3, 4}},
		},
		Trail: []observerproto.TrailCell{
			{Pos: [2]int{10, 10}, Age: 1, Bucket: "red"},
			{Pos: [2]int{9, 10}, Age: 60, Bucket: "blue"},
		},
		Unsupported: []int{5},
	}
	if err := frameSchema.Validate(roundTrip(t, frame)); err != nil {
		t.Fatalf("frame: %v", err)
	}

	five := uint64(5)
	buckets := make([]observerproto.BucketInfo, 7)
	for i := range buckets {
		buckets[i] = observerproto.BucketInfo{Name: "b", Color: "1", MinAge: uint64(i)}
	}
	buckets[0].MaxAge = &five
	boot := observerproto.BootstrapResponse{
		ProtocolVersion: observerproto.Version,
		RunID:           "run-1",
		Grid:            observerproto.GridParams{Width: 20, Height: 20},
		Agents:          5,
		Markers:         []string{"@", "%", "#", "*", "+"},
		Buckets:         buckets,
	}
	if err := bootstrapSchema.Validate(roundTrip(t, boot)); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
}

func TestSchemas_RejectBadFrame(t *testing.T) {
	frameSchema := compile(t, "frame.schema.json")
	var bad any
	_ = json.Unmarshal([]byte(`{
	  "type":"FRAME",
	  "protocol_version":"0.1",
	  "tick":1,
	  "agents":[{"id":0,"pos":[1]}],
	  "trail":[]
	}`), &bad)
	if err := frameSchema.Validate(bad); err == nil {
		t.Fatalf("expected short pos to fail validation")
	}

	_ = json.Unmarshal([]byte(`{
	  "type":"FRAME",
	  "protocol_version":"0.1",
	  "tick":1,
	  "agents":[],
	  "trail":[{"pos":[0,0],"age":3,"bucket":"green"}]
	}`), &bad)
	if err := frameSchema.Validate(bad); err == nil {
		t.Fatalf("expected unknown bucket to fail validation")
	}
}
