package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/PixeeSandbox/ravendb"
	"github.com/PixeeSandbox/ravendb/arena"
	"github.com/PixeeSandbox/ravendb/indexes"
	"github.com/PixeeSandbox/ravendb/rows"
	"github.com/PixeeSandbox/ravendb/schema"
	"github.com/ergochat/readline"
)

var completer = readline.NewPrefixCompleter(
	readline.PcItem("help"),
	readline.PcItem("put"),
	readline.PcItem("get"),
	readline.PcItem("email"),
	readline.PcItem("name"),
	readline.PcItem("seek"),
	readline.PcItem("del"),
	readline.PcItem("schema"),
	readline.PcItem("exit"),
	readline.PcItem("quit"),
)

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

// The demo table: rows are (id u64, email, first, last).

type nameKey struct{}

func (nameKey) IndexKeyGenerator() {}

func (nameKey) GenerateKey(a arena.Arena, v *rows.View) (arena.Slice, error) {
	first := strings.ToLower(string(v.Field(2)))
	last := strings.ToLower(string(v.Field(3)))
	key := a.Allocate(len(last) + 1 + len(first))
	buf := key.Bytes()
	at := copy(buf, last)
	buf[at] = ' '
	copy(buf[at+1:], first)
	return key, nil
}

func demoSchema() (*schema.Schema, error) {
	indexes.RegisterKeyGenerator("demo", "name_key", nameKey{})
	byName, err := indexes.NewComputedDef("by_name", false, "demo", "name_key")
	if err != nil {
		return nil, err
	}
	return schema.New(
		indexes.NewFieldRangeDef("pk", true, 0, 1),
		indexes.NewFieldRangeDef("by_email", false, 1, 1),
		byName,
		indexes.NewFixedSizeDef("by_id", false, 0),
	)
}

func showRow(v *rows.View) {
	id, _ := rows.Uint64Field(v.Field(0))
	fmt.Printf("%d\t%s\t%s %s\n", id, v.Field(1), v.Field(2), v.Field(3))
}

func main() {
	if len(os.Args) < 2 {
		_, _ = fmt.Fprintln(os.Stderr, "Usage: ravendb <table-dir>")
		os.Exit(-2)
	}

	sch, err := demoSchema()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(-1)
	}
	table, err := ravendb.Open(os.Args[1], sch, ravendb.Options{TrackEntrySizes: true})
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(-1)
	}

	l, err := readline.NewEx(&readline.Config{
		Prompt:          "◌ ",
		HistoryFile:     "/tmp/readline.tmp",
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		panic(err)
	}
	defer l.Close()
	l.CaptureExitSignal()

	for {
		line, err := l.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			} else {
				continue
			}
		} else if err == io.EOF {
			break
		}

		line = strings.TrimSpace(line)
		args := strings.Split(line, " ")
		cmd := args[0]
		args = args[1:]
		err = nil
		switch cmd {
		case "help":
			fmt.Println("put <id> <email> <first> <last> | get <id> | email <email> |")
			fmt.Println("name <last first...> | seek <index> <prefix> | del <id> | schema | exit")
		case "exit", "quit":
			ex := 0
			err = table.Close()
			if err != nil {
				_, _ = fmt.Fprintln(os.Stderr, err.Error())
				ex = -1
			}
			os.Exit(ex)
		case "put":
			if len(args) != 4 {
				err = fmt.Errorf("put <id> <email> <first> <last>")
				break
			}
			var id uint64
			if id, err = strconv.ParseUint(args[0], 10, 64); err != nil {
				break
			}
			b := rows.NewBuilder().
				AddUint64(id).
				AddString(args[1]).
				AddString(args[2]).
				AddString(args[3])
			err = table.Put(b)
		case "get":
			var id uint64
			if len(args) != 1 {
				err = fmt.Errorf("get <id>")
				break
			}
			if id, err = strconv.ParseUint(args[0], 10, 64); err != nil {
				break
			}
			var v *rows.View
			if v, err = table.GetByFixedKey("by_id", id); err == nil && v != nil {
				showRow(v)
			}
		case "email":
			if len(args) != 1 {
				err = fmt.Errorf("email <email>")
				break
			}
			var v *rows.View
			if v, err = table.GetByIndex("by_email", []byte(args[0])); err == nil && v != nil {
				showRow(v)
			}
		case "name":
			var v *rows.View
			if v, err = table.GetByIndex("by_name", []byte(strings.ToLower(strings.Join(args, " ")))); err == nil && v != nil {
				showRow(v)
			}
		case "seek":
			if len(args) < 1 {
				err = fmt.Errorf("seek <index> [prefix]")
				break
			}
			prefix := ""
			if len(args) > 1 {
				prefix = strings.Join(args[1:], " ")
			}
			seq, serr := table.SeekIndex(args[0], []byte(prefix))
			if serr != nil {
				err = serr
				break
			}
			for key, v := range seq {
				fmt.Printf("%q\t", key)
				showRow(v)
			}
		case "del":
			var id uint64
			if len(args) != 1 {
				err = fmt.Errorf("del <id>")
				break
			}
			if id, err = strconv.ParseUint(args[0], 10, 64); err != nil {
				break
			}
			var v *rows.View
			if v, err = table.GetByFixedKey("by_id", id); err == nil && v != nil {
				err = table.Delete(v.Field(0))
			}
		case "schema":
			fmt.Printf("table %s\n", table.Id())
			p := table.Schema().Primary()
			fmt.Printf("primary\t%s\tfields %d..%d\n", p.Name(), p.StartIndex(), p.StartIndex()+p.SpanCount()-1)
			for _, def := range table.Schema().Secondary() {
				fmt.Printf("%s\t%s\tglobal=%v\n", def.Name(), def.Kind(), def.Global())
			}
		default:
			_, _ = fmt.Fprintf(os.Stderr, "command unknown: %s\n", cmd)
		}

		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Error executing %s: %s\n", cmd, err.Error())
		}
	}
}
