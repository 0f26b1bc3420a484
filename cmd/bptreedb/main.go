// Command bptreedb is a small demonstration program exercising pkg/db end
// to end: create a file, insert, range-scan, search and delete. Mirrors
// the teacher's cmd/db in shape and log/fmt usage.
package main

import (
	"errors"
	"fmt"
	"log"

	"btreedb/pkg/db"
	"btreedb/pkg/dberr"
	"btreedb/pkg/node"
)

func main() {
	database, err := db.Create("data/orders.db", node.DefaultConfig)
	if err != nil {
		log.Fatalf("failed to create database: %v", err)
	}
	defer database.Close()

	orders := map[uint32]uint64{
		101: 4999,
		102: 1250,
		205: 7300,
		310: 899,
		417: 15200,
	}

	fmt.Println("inserting orders...")
	for id, total := range orders {
		key := node.EncodeUint32Key(id)
		value := node.EncodeUint64Value(total)
		if err := database.Put(key, value); err != nil {
			log.Printf("failed to insert order %d: %v", id, err)
		}
	}

	fmt.Println("\norders in [100, 300):")
	pairs, err := database.Range(node.EncodeUint32Key(100), node.EncodeUint32Key(300))
	if err != nil {
		log.Fatalf("range scan failed: %v", err)
	}
	for _, kv := range pairs {
		fmt.Printf("order %d -> %d\n", node.DecodeUint32Key(kv[0]), node.DecodeUint64Value(kv[1]))
	}

	fmt.Println("\nlookups:")
	for _, id := range []uint32{102, 999} {
		value, ok, err := database.Get(node.EncodeUint32Key(id))
		if err != nil {
			log.Fatalf("get failed: %v", err)
		}
		if ok {
			fmt.Printf("found: order %d -> %d\n", id, node.DecodeUint64Value(value))
		} else {
			fmt.Printf("not found: order %d\n", id)
		}
	}

	fmt.Println("\ndeleting order 101...")
	if err := database.Delete(node.EncodeUint32Key(101)); err != nil {
		log.Printf("failed to delete order 101: %v", err)
	}
	if _, ok, err := database.Get(node.EncodeUint32Key(101)); err != nil {
		log.Fatalf("get failed: %v", err)
	} else if ok {
		fmt.Println("order 101 still exists")
	} else {
		fmt.Println("order 101 successfully deleted")
	}

	if err := database.Delete(node.EncodeUint32Key(101)); errors.Is(err, dberr.ErrKeyNotFound) {
		fmt.Println("deleting an already-deleted order correctly reports not found")
	}
}
