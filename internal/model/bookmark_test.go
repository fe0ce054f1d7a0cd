package model

import (
	"reflect"
	"testing"
)

func TestNormalizeTags_CollapsesDuplicates(t *testing.T) {
	got := NormalizeTags([]string{"go", "sync", "go", "offline"})
	want := []string{"go", "sync", "offline"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeTags = %v, want %v", got, want)
	}
}

func TestNormalizeTags_TrimsAndDropsEmpty(t *testing.T) {
	got := NormalizeTags([]string{" go ", "", "  ", "reading"})
	want := []string{"go", "reading"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeTags = %v, want %v", got, want)
	}
}

func TestNormalizeTags_CaseSensitive(t *testing.T) {
	got := NormalizeTags([]string{"Go", "go"})
	if len(got) != 2 {
		t.Errorf("NormalizeTags = %v, want both casings kept", got)
	}
}

func TestEncodeDecodeTags(t *testing.T) {
	encoded := EncodeTags([]string{"go", "sync", "go"})
	if encoded != "go,sync" {
		t.Errorf("EncodeTags = %q, want %q", encoded, "go,sync")
	}

	decoded := DecodeTags(encoded)
	if !reflect.DeepEqual(decoded, []string{"go", "sync"}) {
		t.Errorf("DecodeTags = %v, want [go sync]", decoded)
	}
}

func TestDecodeTags_Empty(t *testing.T) {
	if got := DecodeTags(""); got != nil {
		t.Errorf("DecodeTags(\"\") = %v, want nil", got)
	}
}

func TestParseTagInput(t *testing.T) {
	got := ParseTagInput("go, sync,go, ")
	want := []string{"go", "sync"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseTagInput = %v, want %v", got, want)
	}
}
