package initwfn

import (
	"encoding/json"
	"testing"
)

func TestUnmarshalJSON(t *testing.T) {
	in := []byte(`{"Type": "GlorotU", "Config": {"Gain": 2.5}}`)

	var w InitWFn
	if err := json.Unmarshal(in, &w); err != nil {
		t.Fatal(err)
	}
	if w.Type != GlorotU {
		t.Errorf("type: want(%v) have(%v)", GlorotU, w.Type)
	}
	c, ok := w.Config.(GlorotUConfig)
	if !ok || c.Gain != 2.5 {
		t.Errorf("config: want(GlorotUConfig{2.5}) have(%v)", w.Config)
	}
	if w.InitWFn() == nil {
		t.Error("expected a Gorgonia InitWFn")
	}
}

func TestMarshalUnmarshal(t *testing.T) {
	for _, w := range []*InitWFn{
		NewHeN(1), NewGaussian(0, 0.1), NewZeroes(), NewGlorotN(1),
	} {
		data, err := json.Marshal(w)
		if err != nil {
			t.Fatal(err)
		}
		var out InitWFn
		if err := json.Unmarshal(data, &out); err != nil {
			t.Fatalf("%v: %v", w, err)
		}
		if out.Type != w.Type || out.Config != w.Config {
			t.Errorf("want(%v) have(%v)", w, &out)
		}
	}
}

func TestUnknownType(t *testing.T) {
	var w InitWFn
	if err := json.Unmarshal([]byte(`{"Type": "Orthogonal"}`), &w); err == nil {
		t.Error("expected error for unknown type")
	}
}
