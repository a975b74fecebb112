package media

import "testing"

func TestObjectName(t *testing.T) {
	got := ObjectName("prj_abc", 3, "final-cut.mp4")
	want := "prj_abc/v3/final-cut.mp4"
	if got != want {
		t.Fatalf("ObjectName() = %q, want %q", got, want)
	}
}
