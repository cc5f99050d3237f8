package logger

import "testing"

func TestOperationFromSQL(t *testing.T) {
	cases := map[string]string{
		"SELECT * FROM entities":                            "SELECT",
		"  insert into compliance_results (id) values (1)": "INSERT",
		"":                      "UNKNOWN",
		"VACUUM":                "UNKNOWN",
		"(UPDATE entities SET)": "UPDATE",
	}
	for sql, want := range cases {
		if got := operationFromSQL(sql); got != want {
			t.Fatalf("operationFromSQL(%q) = %s, want %s", sql, got, want)
		}
	}
}
