package chatbot

import (
	"reflect"
	"testing"
)

func TestFormat(t *testing.T) {
	got := Format("**Our Pricing** 💰\n- Starter: from **KES 35,000**\n• Support included\n\nplain")
	want := []Line{
		{Spans: []Span{{Text: "Our Pricing", Bold: true}, {Text: " 💰"}}},
		{Spans: []Span{{Text: "- Starter: from "}, {Text: "KES 35,000", Bold: true}}, Indent: true},
		{Spans: []Span{{Text: "• Support included"}}, Indent: true},
		{Spans: []Span{}},
		{Spans: []Span{{Text: "plain"}}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Format mismatch\n got: %+v\nwant: %+v", got, want)
	}
}

func TestFormat_UnclosedBoldStaysPlain(t *testing.T) {
	got := Format("a **b")
	want := []Line{{Spans: []Span{{Text: "a **b"}}}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestFormat_CRLF(t *testing.T) {
	got := Format("one\r\n  - two")
	if len(got) != 2 || !got[1].Indent {
		t.Errorf("unexpected lines: %+v", got)
	}
}

func TestFormat_DefaultRulesRender(t *testing.T) {
	table, err := NewDefaultRuleTable(DefaultBrand())
	if err != nil {
		t.Fatalf("NewDefaultRuleTable: %v", err)
	}
	reply := table.Resolve("price")
	lines := Format(reply.Text)
	if len(lines) < 2 || !lines[0].Spans[0].Bold {
		t.Errorf("expected bold heading line, got %+v", lines)
	}
}
