package dnd

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/verte-zerg/exprparms/internal/host"
	"github.com/verte-zerg/exprparms/internal/store"
)

func openScene(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "scene.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	scene := store.Scene{Nodes: []store.SceneNode{
		{Path: "/obj/a", Parms: []store.SceneParm{{Name: "tx"}, {Name: "ty"}}},
		{Path: "/obj/b", Parms: []store.SceneParm{{Name: "tx"}, {Name: "sz"}}},
	}}
	if err := st.Import(context.Background(), scene); err != nil {
		t.Fatalf("import: %v", err)
	}
	return st
}

func paths(parms []host.Parm) []string {
	out := make([]string, 0, len(parms))
	for _, p := range parms {
		out = append(out, p.Path())
	}
	return out
}

func TestAccepts(t *testing.T) {
	if Accepts(Payload{"text/plain": "x"}) {
		t.Fatalf("expected plain text to be rejected")
	}
	if !Accepts(Payload{NodePathMIME: "/obj/a"}) || !Accepts(Payload{ParmPathMIME: ""}) {
		t.Fatalf("expected path payloads to be accepted")
	}
}

func TestResolveParmPayload(t *testing.T) {
	st := openScene(t)
	parms, err := Resolve(context.Background(), st, Payload{ParmPathMIME: "/obj/a/tx\t/obj/missing/tx\t\t/obj/b/sz"}, "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := paths(parms); !reflect.DeepEqual(got, []string{"/obj/a/tx", "/obj/b/sz"}) {
		t.Fatalf("unexpected parms: %v", got)
	}
}

func TestResolveNodePayloadMatchesSource(t *testing.T) {
	st := openScene(t)
	ctx := context.Background()
	payload := Payload{NodePathMIME: "/obj/a\t/obj/b\t/obj/none"}

	parms, err := Resolve(ctx, st, payload, "tx")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := paths(parms); !reflect.DeepEqual(got, []string{"/obj/a/tx", "/obj/b/tx"}) {
		t.Fatalf("unexpected parms: %v", got)
	}

	parms, err = Resolve(ctx, st, payload, "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(parms) != 4 {
		t.Fatalf("expected every node parm without a source, got %v", paths(parms))
	}
}

func TestResolvePastedPaths(t *testing.T) {
	st := openScene(t)
	parms, err := ResolvePaths(context.Background(), st, ParsePaths("/obj/a/ty\n/obj/b, /obj/zzz"), "sz")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := paths(parms); !reflect.DeepEqual(got, []string{"/obj/a/ty", "/obj/b/sz"}) {
		t.Fatalf("unexpected parms: %v", got)
	}
}
