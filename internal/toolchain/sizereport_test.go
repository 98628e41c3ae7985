package toolchain

import "testing"

func TestParseSysVSizeSingleObject(t *testing.T) {
	input := `objs/hello.c.o  :
section           size   addr
.text               22      0
.data                0      0
.bss                 0      0
.rodata.str1.1      12      0
.comment            18      0
.note.GNU-stack      0      0
.eh_frame           48      0
Total              100
`
	info, err := ParseSysVSize(input)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(info.Objects) != 1 {
		t.Fatalf("expected 1 object, got %d", len(info.Objects))
	}
	obj := info.Objects[0]
	if obj.Name != "objs/hello.c.o" || obj.Archive != "" || obj.Size != 100 {
		t.Errorf("unexpected object: %+v", obj)
	}
	if len(obj.Sections) != 7 {
		t.Errorf("expected 7 sections, got %d", len(obj.Sections))
	}
	if info.Size != 100 {
		t.Errorf("expected total size 100, got %d", info.Size)
	}
	if info.Sections[".text"] != 22 {
		t.Errorf("expected .text rollup 22, got %d", info.Sections[".text"])
	}
}

func TestParseSysVSizeArchive(t *testing.T) {
	input := `hello.c.o   (ex my libs/libhello.a):
section           size   addr
.text               22      0
.data                0      0
.bss                 0      0
.rodata.str1.1      12      0
.comment            18      0
.note.GNU-stack      0      0
.eh_frame           48      0
Total              100

bye .c.o   (ex my libs/libhello.a):
section           size   addr
.text               12      0
.data                0      0
.bss                 0      0
.rodata.str1.1       5      0
.comment            18      0
.note.GNU-stack      0      0
.eh_frame           48      0
Total               83
`
	info, err := ParseSysVSize(input)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(info.Objects) != 2 {
		t.Fatalf("expected 2 objects, got %d", len(info.Objects))
	}
	if info.Objects[0].Name != "hello.c.o" || info.Objects[0].Archive != "my libs/libhello.a" {
		t.Errorf("unexpected object[0]: %+v", info.Objects[0])
	}
	if info.Objects[1].Name != "bye .c.o" || info.Objects[1].Size != 83 {
		t.Errorf("unexpected object[1]: %+v", info.Objects[1])
	}
	if info.Size != 183 {
		t.Errorf("expected total 183, got %d", info.Size)
	}
}
