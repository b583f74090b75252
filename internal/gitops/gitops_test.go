package gitops

import (
	"strings"
	"testing"
)

func TestValidRepoURL(t *testing.T) {
	valid := []string{
		"git@github.com:org/repo.git",
		"https://github.com/org/repo",
		"ssh://git@github.com/org/repo.git",
	}
	for _, u := range valid {
		if !ValidRepoURL(u) {
			t.Errorf("expected %q to be valid", u)
		}
	}

	invalid := []string{
		"file:///tmp/repo",
		"/etc/passwd",
		"./relative",
		"../escape",
		"not a url",
	}
	for _, u := range invalid {
		if ValidRepoURL(u) {
			t.Errorf("expected %q to be rejected", u)
		}
	}
}

func TestCloneArgs(t *testing.T) {
	args := CloneArgs("git@github.com:org/repo.git", "dest", CloneOptions{Branch: "main", Depth: 1})
	want := []string{"clone", "--branch", "main", "--depth", "1", "git@github.com:org/repo.git", "dest"}
	if strings.Join(args, " ") != strings.Join(want, " ") {
		t.Fatalf("got %v want %v", args, want)
	}
}

func TestFetchArgsDefaultsOrigin(t *testing.T) {
	args := FetchArgs("/ws/repo", "", true)
	want := []string{"-C", "/ws/repo", "fetch", "origin", "--prune"}
	if strings.Join(args, " ") != strings.Join(want, " ") {
		t.Fatalf("got %v want %v", args, want)
	}
}

func TestParseStatusClean(t *testing.T) {
	out := "# branch.head main\n# branch.ab +0 -0\n"
	st, err := ParseStatus(strings.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	if st.Branch != "main" || !st.Clean {
		t.Fatalf("got %+v", st)
	}
}

func TestParseStatusDirty(t *testing.T) {
	out := strings.Join([]string{
		"# branch.head feature",
		"# branch.ab +2 -1",
		"1 M. N... 100644 100644 100644 abc123 def456 staged.go",
		"1 .M N... 100644 100644 100644 abc123 def456 unstaged.go",
		"? untracked.go",
		"u UU N... 100644 100644 100644 100644 a b c conflict.go",
		"",
	}, "\n")
	st, err := ParseStatus(strings.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	if st.Branch != "feature" || st.Ahead != 2 || st.Behind != 1 {
		t.Fatalf("got %+v", st)
	}
	if st.StagedCount != 1 || st.UnstagedCount != 1 || st.UntrackedCount != 1 || st.ConflictsCount != 1 {
		t.Fatalf("got %+v", st)
	}
	if st.Clean {
		t.Fatalf("dirty repo must not report clean")
	}
}
