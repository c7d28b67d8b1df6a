package callbacks

import (
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestParse(t *testing.T) {
	cases := []struct {
		cb      *tele.Callback
		unique  string
		payload string
	}{
		{nil, "", ""},
		{&tele.Callback{Data: "payment,coffee"}, "", "payment,coffee"},
		{&tele.Callback{Data: "🇪🇸 español"}, "", "🇪🇸 español"},
		{&tele.Callback{Data: "\fmenu|open"}, "menu", "open"},
		{&tele.Callback{Data: "\fmenu"}, "menu", ""},
		{&tele.Callback{Unique: "menu", Data: "open"}, "menu", "open"},
		// A literal backslash-f is ordinary data.
		{&tele.Callback{Data: `\fmenu`}, "", `\fmenu`},
	}
	for _, tc := range cases {
		u, p := Parse(tc.cb)
		if u != tc.unique || p != tc.payload {
			t.Fatalf("Parse(%+v) = %q, %q; want %q, %q", tc.cb, u, p, tc.unique, tc.payload)
		}
	}
}
