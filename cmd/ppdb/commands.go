package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/ppdb/pkg/database"
	"github.com/cuemby/ppdb/pkg/types"
)

func openDB() (*database.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return database.Open(cfg)
}

var createTableCmd = &cobra.Command{
	Use:   "create-table <table>",
	Short: "Create a table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		tx := db.BeginDefault(types.TxnFlags{})
		if _, err := tx.CreateTable(args[0]); err != nil {
			_ = tx.Abort()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		fmt.Printf("table %q created\n", args[0])
		return nil
	},
}

var putCmd = &cobra.Command{
	Use:   "put <table> <key> <value>",
	Short: "Put a key/value pair",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		syncOnCommit, _ := cmd.Flags().GetBool("sync")
		tx := db.BeginDefault(types.TxnFlags{SyncOnCommit: syncOnCommit})
		h, err := tx.Table(args[0])
		if err != nil {
			_ = tx.Abort()
			return err
		}
		if err := h.Put([]byte(args[1]), []byte(args[2])); err != nil {
			_ = tx.Abort()
			return err
		}
		return tx.Commit()
	},
}

func init() {
	putCmd.Flags().Bool("sync", true, "fsync the WAL before this commit returns")
}

var getCmd = &cobra.Command{
	Use:   "get <table> <key>",
	Short: "Get a value by key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		tx := db.BeginDefault(types.TxnFlags{ReadOnly: true})
		defer tx.Abort()

		h, err := tx.Table(args[0])
		if err != nil {
			return err
		}
		value, found, err := h.Get([]byte(args[1]))
		if err != nil {
			return err
		}
		if !found {
			fmt.Println("(not found)")
			return nil
		}
		fmt.Println(string(value))
		return nil
	},
}

var delCmd = &cobra.Command{
	Use:   "del <table> <key>",
	Short: "Delete a key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		tx := db.BeginDefault(types.TxnFlags{})
		h, err := tx.Table(args[0])
		if err != nil {
			_ = tx.Abort()
			return err
		}
		if err := h.Delete([]byte(args[1])); err != nil {
			_ = tx.Abort()
			return err
		}
		return tx.Commit()
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan <table>",
	Short: "Scan all keys in a table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		tx := db.BeginDefault(types.TxnFlags{ReadOnly: true})
		defer tx.Abort()

		h, err := tx.Table(args[0])
		if err != nil {
			return err
		}
		cur := h.Scan()
		defer cur.Close()
		for ok := cur.Seek(nil); ok; ok = cur.Next() {
			fmt.Printf("%s\t%s\n", cur.Key(), cur.Value())
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print database statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats := db.Stats()
		fmt.Printf("instance_id:    %s\n", db.InstanceID())
		fmt.Printf("tables:         %v\n", db.ListTables())
		fmt.Printf("reads:          %d\n", stats.Reads)
		fmt.Printf("writes:         %d\n", stats.Writes)
		fmt.Printf("cache_hits:     %d\n", stats.CacheHits)
		fmt.Printf("cache_misses:   %d\n", stats.CacheMisses)
		fmt.Printf("bytes_read:     %d\n", stats.BytesRead)
		fmt.Printf("bytes_written:  %d\n", stats.BytesWritten)
		fmt.Printf("conflicts:      %d\n", stats.Conflicts)
		fmt.Printf("active_txns:    %d\n", stats.ActiveTxns)
		fmt.Printf("wal_segments:   %d\n", stats.WALSegments)
		fmt.Printf("wal_bytes:      %d\n", stats.WALBytes)
		return nil
	},
}
