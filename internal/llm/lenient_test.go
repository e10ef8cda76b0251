package llm

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNormalizeItemsJSON(t *testing.T) {
	raw := []byte(`{"items":[{"Name":"  Coke ","Value":6,"Category":null,"Extra":"x"}]}`)
	out, changed, err := NormalizeItemsJSON(raw, quietLogger())
	if err != nil {
		t.Fatalf("NormalizeItemsJSON: %v", err)
	}
	if len(changed) == 0 {
		t.Fatal("expected change list")
	}
	var items []MenuItem
	if err := json.Unmarshal(out, &items); err != nil {
		t.Fatal(err)
	}
	want := MenuItem{Name: "Coke", Value: "6", Category: "", Description: ""}
	if len(items) != 1 || items[0] != want {
		t.Fatalf("items = %+v, want %+v", items, want)
	}
	if err := ValidateJSONAgainstSchema(BuildValidationSchema(), out); err != nil {
		t.Fatalf("normalized output fails schema: %v", err)
	}
}

func TestNormalizeItemsJSONRejects(t *testing.T) {
	for _, raw := range []string{`"text"`, `[1,2]`, `{"a":1,"b":2}`, `nope`} {
		if _, _, err := NormalizeItemsJSON([]byte(raw), quietLogger()); err == nil {
			t.Errorf("NormalizeItemsJSON(%s) succeeded, want error", raw)
		}
	}
}

func TestDecoder(t *testing.T) {
	allowed := []string{"Pizzas", "Drinks"}
	tests := []struct {
		name    string
		lenient bool
		text    string
		wantErr bool
		want    []MenuItem
	}{
		{
			name: "strict ok",
			text: `[{"Name":"A","Value":"1","Category":"PIZZAS","Description":"d"}]`,
			want: []MenuItem{{Name: "A", Value: "1", Category: "Pizzas", Description: "d"}},
		},
		{
			name: "strict missing description",
			text: `[{"Name":"A","Value":"1","Category":"Pizzas"}]`,
			want: []MenuItem{{Name: "A", Value: "1", Category: "Pizzas"}},
		},
		{
			name:    "strict null description",
			text:    `[{"Name":"A","Value":"1","Category":"Pizzas","Description":null}]`,
			wantErr: true,
		},
		{
			name:    "strict missing value",
			text:    `[{"Name":"A","Category":"Pizzas","Description":"d"}]`,
			wantErr: true,
		},
		{
			name:    "lenient missing description",
			lenient: true,
			text:    `[{"Name":"A","Value":"1","Category":"Pizzas"}]`,
			want:    []MenuItem{{Name: "A", Value: "1", Category: "Pizzas"}},
		},
		{
			name:    "fenced",
			lenient: true,
			text:    "```json\n[{\"Name\":\"A\",\"Value\":\"1\",\"Category\":\"Soup\",\"Description\":\"\"}]\n```",
			want:    []MenuItem{{Name: "A", Value: "1", Category: "Other"}},
		},
		{
			name:    "empty list",
			lenient: true,
			text:    `[]`,
			want:    []MenuItem{},
		},
		{
			name:    "not json",
			lenient: true,
			text:    `sorry`,
			wantErr: true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d, err := NewDecoder(tc.lenient, quietLogger())
			if err != nil {
				t.Fatal(err)
			}
			got, err := d.Decode(tc.text, allowed, "Other")
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Decode succeeded with %+v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %d items, want %d", len(got), len(tc.want))
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("item %d = %+v, want %+v", i, got[i], tc.want[i])
				}
			}
		})
	}
}
