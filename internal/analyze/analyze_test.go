package analyze

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pySample = `import os
from collections import OrderedDict, defaultdict


@lru_cache
def helper(a, b=2):
    return a + b


async def fetch(url):
    data = helper(1, 2)
    return data


class Greeter(Base):
    """Says hello."""

    def __init__(self, name):
        self.name = name

    def greet(self):
        return helper(3, 4)


g = Greeter("hi")
`

func TestPythonAnalyzer(t *testing.T) {
	reg := DefaultRegistry()
	res := reg.Analyze("sample.py", []byte(pySample))

	require.Empty(t, res.Errors)
	assert.Equal(t, LangPython, res.Language)

	// Functions
	require.Len(t, res.Functions, 4)
	helper := res.Functions[0]
	assert.Equal(t, "helper", helper.Name)
	assert.Equal(t, 6, helper.StartLine)
	assert.Equal(t, []string{"a", "b"}, helper.Params)
	assert.Equal(t, []string{"lru_cache"}, helper.Decorators)
	assert.False(t, helper.Async)

	fetch := res.Functions[1]
	assert.Equal(t, "fetch", fetch.Name)
	assert.True(t, fetch.Async)
	require.Len(t, fetch.Calls, 1)
	assert.Equal(t, "helper", fetch.Calls[0].Name)

	// Methods attributed to their class
	require.Len(t, res.Classes, 1)
	cls := res.Classes[0]
	assert.Equal(t, "Greeter", cls.Name)
	assert.Equal(t, "Base", cls.Base)
	assert.Equal(t, []string{"__init__", "greet"}, cls.Methods)
	assert.Greater(t, cls.EndLine, cls.StartLine)

	// Imports
	require.Len(t, res.Imports, 2)
	assert.Equal(t, "os", res.Imports[0].Module)
	assert.Equal(t, ImportPlain, res.Imports[0].Style)
	assert.Equal(t, "collections", res.Imports[1].Module)
	assert.Equal(t, []string{"OrderedDict", "defaultdict"}, res.Imports[1].Names)
	assert.Equal(t, ImportFrom, res.Imports[1].Style)

	// Instantiation mention is a plain call mention of the class name
	var mentioned []string
	for _, c := range res.Calls {
		mentioned = append(mentioned, c.Name)
	}
	assert.Contains(t, mentioned, "Greeter")
}

const goSample = `package demo

import (
	"fmt"
	"strings"
)

type Widget struct {
	Name string
}

func (w *Widget) Render() string {
	return strings.ToUpper(w.Name)
}

func Build(name string) *Widget {
	w := Widget{Name: name}
	fmt.Println(levels(name))
	return &w
}

func levels(s string) int {
	return len(s)
}
`

func TestGoAnalyzer(t *testing.T) {
	reg := DefaultRegistry()
	res := reg.Analyze("widget.go", []byte(goSample))

	require.Empty(t, res.Errors)
	assert.Equal(t, LangGo, res.Language)

	require.Len(t, res.Classes, 1)
	assert.Equal(t, "Widget", res.Classes[0].Name)
	assert.Equal(t, []string{"Render"}, res.Classes[0].Methods)

	var names []string
	for _, fn := range res.Functions {
		names = append(names, fn.Name)
	}
	assert.Equal(t, []string{"Render", "Build", "levels"}, names)

	require.Len(t, res.Imports, 2)
	assert.Equal(t, "fmt", res.Imports[0].Module)

	// Composite literal and plain call mentions
	var mentioned []string
	for _, c := range res.Calls {
		mentioned = append(mentioned, c.Name)
	}
	assert.Contains(t, mentioned, "Widget")
	assert.Contains(t, mentioned, "levels")
}

const jsSample = `import { router } from "./router";
const fs = require("fs");

export async function start(port) {
	const app = build(port);
	return app;
}

const build = (port) => createServer(port);

class Server extends Base {
	listen(port) {
		return port;
	}
}

const s = new Server();
`

func TestJSAnalyzer(t *testing.T) {
	reg := DefaultRegistry()
	res := reg.Analyze("server.js", []byte(jsSample))

	require.Empty(t, res.Errors)
	assert.Equal(t, LangJavaScript, res.Language)

	var names []string
	for _, fn := range res.Functions {
		names = append(names, fn.Name)
	}
	assert.Equal(t, []string{"start", "build"}, names)
	assert.True(t, res.Functions[0].Async)

	require.Len(t, res.Classes, 1)
	assert.Equal(t, "Server", res.Classes[0].Name)
	assert.Equal(t, "Base", res.Classes[0].Base)
	assert.Equal(t, []string{"listen"}, res.Classes[0].Methods)

	require.Len(t, res.Imports, 2)
	assert.Equal(t, "./router", res.Imports[0].Module)
	assert.Equal(t, ImportES6, res.Imports[0].Style)
	assert.Equal(t, "fs", res.Imports[1].Module)
	assert.Equal(t, ImportRequire, res.Imports[1].Style)

	var mentioned []string
	for _, c := range res.Calls {
		mentioned = append(mentioned, c.Name)
	}
	assert.Contains(t, mentioned, "Server")
	assert.Contains(t, mentioned, "build")
}

func TestTypeScriptUsesJSAnalyzer(t *testing.T) {
	reg := DefaultRegistry()
	res := reg.Analyze("app.ts", []byte("export function run(x: number): void {}\n"))
	assert.Equal(t, LangTypeScript, res.Language)
	require.Len(t, res.Functions, 1)
	assert.Equal(t, "run", res.Functions[0].Name)
}

// An unsupported extension yields an empty, error-free result: the file
// is indexed by metadata only.
func TestUnsupportedExtension(t *testing.T) {
	reg := DefaultRegistry()
	res := reg.Analyze("data.csv", []byte("a,b,c\n1,2,3\n"))

	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Functions)
	assert.Empty(t, res.Classes)
	assert.Empty(t, res.Imports)
	assert.NotNil(t, res.Functions)
}

// Malformed input never aborts analysis.
func TestPythonToleratesGarbage(t *testing.T) {
	reg := DefaultRegistry()
	res := reg.Analyze("bad.py", []byte("def broken(:\n  ???\nclass \x01\n"))
	assert.NotNil(t, res)
}

func TestAttributeCallsExcluded(t *testing.T) {
	reg := DefaultRegistry()
	res := reg.Analyze("m.py", []byte("x.save()\nload()\n"))

	var mentioned []string
	for _, c := range res.Calls {
		mentioned = append(mentioned, c.Name)
	}
	assert.Contains(t, mentioned, "load")
	assert.NotContains(t, mentioned, "save")
}

func TestRegistryForFile(t *testing.T) {
	reg := DefaultRegistry()

	_, lang, ok := reg.ForFile("x.py")
	assert.True(t, ok)
	assert.Equal(t, LangPython, lang)

	_, _, ok = reg.ForFile("x.bin")
	assert.False(t, ok)
}
