package normalize

import "testing"

func TestFold(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Montar PDI", "montar pdi"},
		{"MONTAR  PDI!!", "montar pdi"},
		{"Comunicação", "comunicacao"},
		{"tarefas cargo (autoavaliação)", "tarefas cargo autoavaliacao"},
		{"  1 ", "1"},
		{"", ""},
		{"---", ""},
		{"diagnóstico PDI", "diagnostico pdi"},
	}

	for _, tc := range cases {
		if got := Fold(tc.in); got != tc.want {
			t.Errorf("Fold(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
