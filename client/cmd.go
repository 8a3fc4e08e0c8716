package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/TechTraverse/stac-fastapi-pgstac/api"
)

var (
	file    string
	address = "http://localhost:8080"

	putCmd = &cobra.Command{
		Use:     "put",
		Aliases: []string{"apply"},
		Short:   "Put items or collections from file",
		Run:     put,
	}

	getCmd = &cobra.Command{
		Use:   "get [collection/id]",
		Short: "Get an item or collection",
		Args:  cobra.ExactArgs(1),
		Run:   get,
	}

	deleteCmd = &cobra.Command{
		Use:   "delete [collection/id]",
		Short: "Delete an item",
		Args:  cobra.ExactArgs(1),
		Run:   del,
	}

	searchCmd = &cobra.Command{
		Use:     "search [filter]",
		Aliases: []string{"find"},
		Short:   "Search for items with a cql2-text filter",
		Run:     search,
	}

	searchCollections string
	searchLimit       int
)

func RegisterCommands(root *cobra.Command) {
	putCmd.Flags().StringVarP(&file, "file", "f", "", "Path to JSON/YAML file")
	putCmd.MarkFlagRequired("file")

	searchCmd.Flags().StringVar(&searchCollections, "collections", "", "comma separated collection ids")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "page size")

	for _, cmd := range []*cobra.Command{putCmd, getCmd, deleteCmd, searchCmd} {
		cmd.PersistentFlags().StringVar(&address, "address", address, "api server address")
		root.AddCommand(cmd)
	}
}

func parseFile(file string) ([]map[string]interface{}, error) {
	var data []byte
	var err error

	if file == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %v", err)
	}

	docs := strings.Split(string(data), "---\n")
	var objects []map[string]interface{}

	for _, doc := range docs {
		if strings.TrimSpace(doc) == "" {
			continue
		}

		var obj map[string]interface{}
		if err := yaml.Unmarshal([]byte(doc), &obj); err != nil {
			return nil, fmt.Errorf("failed to parse document: %v", err)
		}

		objects = append(objects, obj)
	}

	return objects, nil
}

func put(cmd *cobra.Command, args []string) {
	objects, err := parseFile(file)
	if err != nil {
		log.Fatal(err)
	}

	cl := New(address)

	for _, obj := range objects {
		raw, err := json.Marshal(obj)
		if err != nil {
			log.Fatal(err)
		}

		switch obj["type"] {
		case "Collection":
			var col api.Collection
			if err := json.Unmarshal(raw, &col); err != nil {
				log.Fatal(err)
			}
			if err := cl.CreateCollection(context.Background(), &col); err != nil {
				log.Fatalf("failed to put collection: %v", err)
			}
			fmt.Println("collections/" + col.Id)

		case "Feature":
			var item api.Item
			if err := json.Unmarshal(raw, &item); err != nil {
				log.Fatal(err)
			}
			if err := cl.CreateItem(context.Background(), &item); err != nil {
				log.Fatalf("failed to put item: %v", err)
			}
			fmt.Println(item.Collection + "/" + item.Id)

		default:
			log.Fatalf("document type must be Collection or Feature, got %v", obj["type"])
		}
	}
}

func get(cmd *cobra.Command, args []string) {
	cl := New(address)

	parts := strings.Split(args[0], "/")
	switch len(parts) {
	case 1:
		col, err := cl.GetCollection(context.Background(), parts[0])
		if err != nil {
			log.Fatal(err)
		}
		printYAML(col)
	case 2:
		item, err := cl.GetItem(context.Background(), parts[0], parts[1])
		if err != nil {
			log.Fatal(err)
		}
		printYAML(item)
	default:
		log.Fatal("invalid id format, expected collection or collection/id")
	}
}

func del(cmd *cobra.Command, args []string) {
	parts := strings.Split(args[0], "/")
	if len(parts) != 2 {
		log.Fatal("invalid id format, expected collection/id")
	}

	cl := New(address)
	if err := cl.DeleteItem(context.Background(), parts[0], parts[1]); err != nil {
		log.Fatal(err)
	}
}

func search(cmd *cobra.Command, args []string) {
	cl := New(address)

	body := &api.SearchBody{Limit: &searchLimit}
	if searchCollections != "" {
		body.Collections = strings.Split(searchCollections, ",")
	}
	if len(args) > 0 {
		filter, err := json.Marshal(strings.Join(args, " "))
		if err != nil {
			log.Fatal(err)
		}
		body.Filter = filter
		body.FilterLang = "cql2-text"
	}

	fc, err := cl.Search(context.Background(), body)
	if err != nil {
		log.Fatal(err)
	}

	for _, item := range fc.Features {
		fmt.Printf("%s/%s\n", item.Collection, item.Id)
	}
}

func printYAML(v interface{}) {
	enc, err := yaml.Marshal(v)
	if err != nil {
		log.Fatalf("failed to encode as YAML: %v", err)
	}
	os.Stdout.Write(enc)
}
