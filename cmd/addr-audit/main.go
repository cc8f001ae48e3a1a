// addr-audit compares libpostal's parse of messy addresses with the key
// normalizer used for matching. Kept as its own binary so the libpostal C
// dependency stays out of the service build.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	postal "github.com/openvenues/gopostal/parser"
	log "github.com/sirupsen/logrus"

	"github.com/akquise-tool/internal/housenumber"
	"github.com/akquise-tool/internal/normalize"
)

func main() {
	var (
		file    = flag.String("file", "", "File with one address per line")
		address = flag.String("address", "", "Single address to audit")
	)
	flag.Parse()

	switch {
	case *address != "":
		auditAddress(*address)
	case *file != "":
		if err := auditFile(*file); err != nil {
			log.Fatalf("Audit failed: %v", err)
		}
	default:
		fmt.Println("Usage:")
		fmt.Println("  Audit a single address:")
		fmt.Println("    ./addr-audit -address=\"Hauptstraße 5, 50667 Köln\"")
		fmt.Println()
		fmt.Println("  Audit a list of addresses:")
		fmt.Println("    ./addr-audit -file=addresses.txt")
		os.Exit(2)
	}
}

// auditAddress prints the full comparison for one address.
func auditAddress(addr string) {
	components := postal.ParseAddress(addr)
	road, houseNumber, postcode := extract(components)

	fmt.Printf("Input: %s\n\n", addr)
	fmt.Println("libpostal components:")
	for _, c := range components {
		fmt.Printf("  %-15s: %s\n", c.Label, c.Value)
	}

	key := normalize.Key(addr)
	libKey := normalize.KeyFromParts(road, postcode)

	fmt.Printf("\nNormalizer key: %s\n", key)
	fmt.Printf("libpostal key:  %s\n", libKey)
	if key == libKey {
		fmt.Println("Keys agree")
	} else {
		fmt.Println("Keys DIVERGE")
	}

	if houseNumber != "" {
		tokens := housenumber.Expand(houseNumber).Sorted()
		fmt.Printf("\nHouse number %q expands to %d tokens: %s\n",
			houseNumber, len(tokens), strings.Join(tokens, " "))
	}
}

// auditFile runs the comparison over a list and prints divergences plus a
// summary.
func auditFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var total, agreed int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		addr := strings.TrimSpace(scanner.Text())
		if addr == "" {
			continue
		}
		total++

		road, _, postcode := extract(postal.ParseAddress(addr))
		key := normalize.Key(addr)
		libKey := normalize.KeyFromParts(road, postcode)

		if key == libKey {
			agreed++
		} else {
			fmt.Printf("DIVERGES  %-40s key=%q libpostal=%q\n", addr, key, libKey)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	fmt.Printf("\nAudited:  %d addresses\n", total)
	if total > 0 {
		fmt.Printf("Agreed:   %d (%.1f%%)\n", agreed, float64(agreed)/float64(total)*100)
	}
	fmt.Printf("Diverged: %d\n", total-agreed)
	return nil
}

// extract pulls the components the matcher cares about.
func extract(components []postal.ParsedComponent) (road, houseNumber, postcode string) {
	for _, c := range components {
		switch c.Label {
		case "road":
			road = c.Value
		case "house_number":
			houseNumber = c.Value
		case "postcode":
			postcode = c.Value
		}
	}
	return road, houseNumber, postcode
}
