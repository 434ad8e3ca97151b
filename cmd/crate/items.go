package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"

	apiclient "github.com/splax/crate/pkg/api/client"
)

func commandItems(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: crate items [list|create|get|update|delete]")
	}
	sub := args[0]
	switch sub {
	case "list":
		return itemsList(args[1:])
	case "create":
		return itemsCreate(args[1:])
	case "get":
		return itemsGet(args[1:])
	case "update":
		return itemsUpdate(args[1:])
	case "delete":
		return itemsDelete(args[1:])
	default:
		return fmt.Errorf("unknown items command: %s", sub)
	}
}

func itemsList(args []string) error {
	fs := flag.NewFlagSet("items list", flag.ExitOnError)
	fs.Parse(args)

	client, token, err := authenticated()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	items, err := client.ListMyItems(ctx, token)
	if err != nil {
		return err
	}
	for _, it := range items {
		printItem(it)
	}
	return nil
}

func itemsCreate(args []string) error {
	fs := flag.NewFlagSet("items create", flag.ExitOnError)
	title := fs.String("title", "", "Item title")
	description := fs.String("description", "", "Item description")
	public := fs.String("public", "", "Visibility (true|false, default true)")
	fs.Parse(args)

	if strings.TrimSpace(*title) == "" {
		return errors.New("--title is required")
	}
	input := apiclient.ItemInput{Title: *title}
	if *description != "" {
		input.Description = description
	}
	visibility, err := parseVisibility(*public)
	if err != nil {
		return err
	}
	input.IsPublic = visibility

	client, token, err := authenticated()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	created, err := client.CreateItem(ctx, token, input)
	if err != nil {
		return err
	}
	fmt.Printf("item created: %s\n", created.ID)
	return nil
}

func itemsGet(args []string) error {
	fs := flag.NewFlagSet("items get", flag.ExitOnError)
	id := fs.String("id", "", "Item identifier")
	fs.Parse(args)
	if strings.TrimSpace(*id) == "" {
		return errors.New("--id is required")
	}

	client, token, err := authenticated()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	it, err := client.GetItem(ctx, token, *id)
	if err != nil {
		return err
	}
	printItem(it)
	return nil
}

// itemsUpdate sends only the flags that were set; the current title is reused
// when --title is omitted because the API requires one.
func itemsUpdate(args []string) error {
	fs := flag.NewFlagSet("items update", flag.ExitOnError)
	id := fs.String("id", "", "Item identifier")
	title := fs.String("title", "", "New title")
	description := fs.String("description", "", "New description")
	public := fs.String("public", "", "Visibility (true|false)")
	fs.Parse(args)
	if strings.TrimSpace(*id) == "" {
		return errors.New("--id is required")
	}
	visibility, err := parseVisibility(*public)
	if err != nil {
		return err
	}

	client, token, err := authenticated()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	input := apiclient.ItemInput{Title: *title, IsPublic: visibility}
	if input.Title == "" {
		current, err := client.GetItem(ctx, token, *id)
		if err != nil {
			return err
		}
		input.Title = current.Title
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "description" {
			input.Description = description
		}
	})

	updated, err := client.UpdateItem(ctx, token, *id, input)
	if err != nil {
		return err
	}
	printItem(updated)
	return nil
}

func itemsDelete(args []string) error {
	fs := flag.NewFlagSet("items delete", flag.ExitOnError)
	id := fs.String("id", "", "Item identifier")
	fs.Parse(args)
	if strings.TrimSpace(*id) == "" {
		return errors.New("--id is required")
	}

	client, token, err := authenticated()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if err := client.DeleteItem(ctx, token, *id); err != nil {
		return err
	}
	fmt.Println("item deleted")
	return nil
}

func parseVisibility(raw string) (*bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("--public must be true or false: %w", err)
	}
	return &v, nil
}

func printItem(it apiclient.Item) {
	visibility := "private"
	if it.IsPublic {
		visibility = "public"
	}
	fmt.Printf("%s\t%s\t%s\t%s\n", it.ID, visibility, it.Title, it.Description)
}
