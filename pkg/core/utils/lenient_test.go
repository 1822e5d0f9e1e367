package utils

import "testing"

type sample struct {
	Name    string    `json:"name"`
	Samples int       `json:"samples"`
	Range   []float64 `json:"range"`
}

func TestSmartParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"plain json", `{"name": "mc", "samples": 100, "range": [2, 4]}`},
		{"trailing comma", `{"name": "mc", "samples": 100, "range": [2, 4],}`},
		{"hjson", "{\n  # comment\n  name: mc\n  samples: 100\n  range: [2, 4]\n}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got sample
			if err := SmartParse([]byte(tt.input), &got); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Name != "mc" || got.Samples != 100 || len(got.Range) != 2 || got.Range[1] != 4 {
				t.Errorf("unexpected result: %+v", got)
			}
		})
	}
}

func TestSmartParse_TypeMismatchFails(t *testing.T) {
	var got sample
	if err := SmartParse([]byte(`{"samples": "many"}`), &got); err == nil {
		t.Fatal("expected error for a string in a numeric field")
	}
}

func TestHJSONToJSON(t *testing.T) {
	out, err := HJSONToJSON([]byte("a: 1\nb: text"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != `{"a":1,"b":"text"}` {
		t.Errorf("unexpected json: %s", out)
	}
}
