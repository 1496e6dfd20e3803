// hashpw generates a bcrypt password hash for seeding API users.
//
// Usage:
//
//	hashpw --password secret
//	echo -n secret | hashpw
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	flagPassword = flag.String("password", "", "password to hash (reads stdin if empty)")
	flagCost     = flag.Int("cost", 12, "bcrypt cost factor")
)

func main() {
	flag.Parse()

	password := *flagPassword
	if password == "" {
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			log.Fatalf("read password: %v", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		log.Fatal("password is empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), *flagCost)
	if err != nil {
		log.Fatalf("generate hash: %v", err)
	}
	fmt.Println(string(hash))
}
