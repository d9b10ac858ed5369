package hash

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"extendhash/pkg/repl"
)

// IndexRepl builds a REPL exposing c's operations: insert, get, delete,
// print (dump the global depth and every live slot's local depth and bucket
// page id), and
// verify (panics, via VerifyIntegrity, on structural corruption).
func IndexRepl(c *IndexCoordinator[int64, int64]) *repl.REPL {
	r := repl.NewRepl()

	r.AddCommand("insert", func(payload string, _ *repl.REPLConfig) (string, error) {
		return "", handleInsert(c, payload)
	}, "Insert a key/value pair. usage: insert <key> <value>")

	r.AddCommand("get", func(payload string, _ *repl.REPLConfig) (string, error) {
		return handleGet(c, payload)
	}, "Look up every value stored under a key. usage: get <key>")

	r.AddCommand("delete", func(payload string, _ *repl.REPLConfig) (string, error) {
		return "", handleDelete(c, payload)
	}, "Delete a specific key/value pair. usage: delete <key> <value>")

	r.AddCommand("print", func(payload string, _ *repl.REPLConfig) (string, error) {
		return handlePrint(c, payload)
	}, "Print the directory's global depth and every slot's local depth and bucket page id. usage: print")

	r.AddCommand("verify", func(payload string, _ *repl.REPLConfig) (string, error) {
		return "", handleVerify(c, payload)
	}, "Check the directory's structural invariants, panicking on corruption. usage: verify")

	return r
}

func handleInsert(c *IndexCoordinator[int64, int64], payload string) error {
	fields := strings.Fields(payload)
	if len(fields) != 3 {
		return errors.New("usage: insert <key> <value>")
	}
	key, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return err
	}
	value, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return err
	}
	ok, err := c.Insert(key, value)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("insert rejected: (%d, %d) is already present, or the directory is exhausted", key, value)
	}
	return nil
}

func handleGet(c *IndexCoordinator[int64, int64], payload string) (string, error) {
	fields := strings.Fields(payload)
	if len(fields) != 2 {
		return "", errors.New("usage: get <key>")
	}
	key, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return "", err
	}
	values, err := c.GetValue(key)
	if err != nil {
		return "", err
	}
	if len(values) == 0 {
		return "not found", nil
	}
	strs := make([]string, len(values))
	for i, v := range values {
		strs[i] = strconv.FormatInt(v, 10)
	}
	return strings.Join(strs, " "), nil
}

func handleDelete(c *IndexCoordinator[int64, int64], payload string) error {
	fields := strings.Fields(payload)
	if len(fields) != 3 {
		return errors.New("usage: delete <key> <value>")
	}
	key, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return err
	}
	value, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return err
	}
	ok, err := c.Remove(key, value)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("delete rejected: (%d, %d) not found", key, value)
	}
	return nil
}

func handlePrint(c *IndexCoordinator[int64, int64], payload string) (string, error) {
	fields := strings.Fields(payload)
	if len(fields) != 1 {
		return "", errors.New("usage: print")
	}
	dirPage, err := c.pgr.FetchPage(c.directoryPageID)
	if err != nil {
		return "", err
	}
	defer c.pgr.UnpinPage(c.directoryPageID, false)
	dir := loadDirectoryPage(dirPage)

	w := new(strings.Builder)
	gd := dir.GetGlobalDepth()
	fmt.Fprintf(w, "global_depth: %d\n", gd)
	n := int(uint32(1) << gd)
	for i := 0; i < n; i++ {
		io.WriteString(w, fmt.Sprintf("slot %d: local_depth=%d bucket_page_id=%d\n",
			i, dir.GetLocalDepth(i), dir.GetBucketPageId(i)))
	}
	return w.String(), nil
}

func handleVerify(c *IndexCoordinator[int64, int64], payload string) error {
	fields := strings.Fields(payload)
	if len(fields) != 1 {
		return errors.New("usage: verify")
	}
	c.VerifyIntegrity()
	return nil
}
