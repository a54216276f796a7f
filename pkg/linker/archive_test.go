package linker

import (
	"bytes"
	"testing"
)

func memberNames(files []*File) []string {
	var names []string
	for _, f := range files {
		names = append(names, f.Name)
	}
	return names
}

func TestReadArchiveMembersGNU(t *testing.T) {
	content := buildArchive([]arMember{
		{"odd.o", []byte("abc")},
		{"a_rather_long_member_name.o", []byte("long")},
		{"another_long_member_name.o", []byte("x")},
		{"even.o", []byte("ab")},
	})

	files, err := ReadArchiveMembers(&File{Name: "lib.a", Content: content})
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"odd.o", "a_rather_long_member_name.o", "another_long_member_name.o", "even.o"}
	if got := memberNames(files); len(got) != len(want) {
		t.Fatalf("members = %v, want %v", got, want)
	}
	data := []string{"abc", "long", "x", "ab"}
	for i, f := range files {
		if f.Name != want[i] || string(f.Content) != data[i] {
			t.Errorf("member %d = %q %q, want %q %q", i, f.Name, f.Content, want[i], data[i])
		}
		if f.DisplayName() != "lib.a("+want[i]+")" {
			t.Errorf("display name = %q", f.DisplayName())
		}
	}
}

func TestReadArchiveMembersBSD(t *testing.T) {
	out := bytes.Buffer{}
	out.Write(arMagic)

	symdef := "__.SYMDEF SORTED\x00\x00\x00\x00"
	out.WriteString(arHeader("#1/20", len(symdef)+4))
	out.WriteString(symdef)
	out.Write([]byte{0, 0, 0, 0})

	name := "bsd_member.o\x00\x00\x00\x00"
	out.WriteString(arHeader("#1/16", len(name)+5))
	out.WriteString(name)
	out.WriteString("hello")
	out.WriteByte('\n')

	out.WriteString(arHeader("short.o", 2))
	out.WriteString("hi")

	files, err := ReadArchiveMembers(&File{Name: "lib.a", Content: out.Bytes()})
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("members = %v", memberNames(files))
	}
	if files[0].Name != "bsd_member.o" || string(files[0].Content) != "hello" {
		t.Errorf("first member = %q %q", files[0].Name, files[0].Content)
	}
	if files[1].Name != "short.o" || string(files[1].Content) != "hi" {
		t.Errorf("second member = %q %q", files[1].Name, files[1].Content)
	}
}

func TestReadArchiveMembersTruncated(t *testing.T) {
	content := buildArchive([]arMember{{"a.o", []byte("0123456789")}})

	for _, cut := range []int{len(arMagic) + 10, len(content) - 4} {
		_, err := ReadArchiveMembers(&File{Name: "lib.a", Content: content[:cut]})
		if err == nil {
			t.Errorf("archive cut at %d: expected an error", cut)
			continue
		}
		if !IsKind(err, ErrInput) {
			t.Errorf("archive cut at %d: %v is not an input error", cut, err)
		}
	}
}
