package edb_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/e-XpertSolutions/go-edb/edb"
)

type Todo struct {
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

func Example() {
	ctx := context.Background()

	path := filepath.Join(os.TempDir(), "edb-example.db")
	_ = os.Remove(path)
	defer os.Remove(path)

	// Open the file medium. Since it does not exist, it will create it.
	medium, err := edb.OpenFileMedium(path)
	if err != nil {
		log.Print("[error] ", err)
		return
	}
	defer medium.Close()

	store, err := edb.Open(ctx, medium, "strong_secret", "app_salt")
	if err != nil {
		log.Print("[error] ", err)
		return
	}
	defer store.Close()

	todos := edb.NewTable[Todo](store, "todos")

	// Store a todo under a generated key.
	rec, err := todos.Set(ctx, "", Todo{Title: "Buy milk"})
	if err != nil {
		log.Print("[error] ", err)
		return
	}

	// Retrieve it back.
	todo, ok, err := todos.Get(ctx, rec.Key)
	if err != nil {
		log.Print("[error] ", err)
		return
	}
	fmt.Println("Found:", ok, todo.Title)

	// List the todos that are not completed yet.
	pending, err := todos.Filter(ctx, func(r edb.Record[Todo]) bool { return !r.Value.Completed })
	if err != nil {
		log.Print("[error] ", err)
		return
	}
	fmt.Println("Pending:", len(pending))

	fmt.Println("Remove todo")

	if err := todos.Remove(ctx, rec.Key); err != nil {
		log.Print("[error] ", err)
		return
	}

	// Since the todo has been removed, it should not be found anymore.
	_, ok, err = todos.Get(ctx, rec.Key)
	if err != nil {
		log.Print("[error] ", err)
		return
	}
	fmt.Println("Found:", ok)

	// Output:
	// Found: true Buy milk
	// Pending: 1
	// Remove todo
	// Found: false
}
