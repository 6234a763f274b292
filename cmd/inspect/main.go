package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"sodeclick-chat/domain"
	"sodeclick-chat/internal"
	"sodeclick-chat/repositories"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/dustin/go-humanize"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", "./data/chat", "Path to badger DB")
	prefix := flag.String("prefix", "msg:", "Prefix to scan in raw mode")
	rooms := flag.Bool("rooms", false, "List rooms")
	history := flag.String("history", "", "List the history visible from an address")
	limit := flag.Int("limit", 50, "Maximum rows")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	switch {
	case *rooms:
		err = printRooms(os.Stdout, repositories.NewRoomRepository(db))
	case *history != "":
		messages := repositories.NewMessageRepository(db, logs.GetLoggerFromLevel(slog.LevelError), *limit)
		err = printHistory(os.Stdout, messages, *history, *limit)
	default:
		err = printKeys(os.Stdout, db, *prefix, *limit)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func printRooms(w io.Writer, repository repositories.RoomRepository) error {
	rooms, err := repository.ListRooms()
	if err != nil {
		return err
	}
	table := newTable(w, "ID", "Name", "Type", "Members", "Messages", "Max", "Min age", "Created")
	for _, room := range rooms {
		maxMembers := "-"
		if room.Settings.MaxMembers > 0 {
			maxMembers = strconv.Itoa(room.Settings.MaxMembers)
		}
		table.Append([]string{
			room.ID,
			room.Name,
			string(room.Type),
			humanize.Comma(int64(len(room.Members))),
			humanize.Comma(room.Stats.TotalMessages),
			maxMembers,
			strconv.Itoa(room.AgeRestriction.MinAge),
			humanize.Time(room.CreatedAt),
		})
	}
	table.Render()
	color.Cyan.Printf("%s rooms\n", humanize.Comma(int64(len(rooms))))
	return nil
}

func printHistory(w io.Writer, repository repositories.MessageRepository, address string, limit int) error {
	messages, cursor, err := repository.ListMessages(address, nil, limit)
	if err != nil {
		return err
	}
	table := newTable(w, "ID", "Sent", "Sender", "Type", "Content", "Reactions", "Read by", "State")
	for _, msg := range messages {
		state := color.Green.Sprint("live")
		if msg.IsDeleted {
			state = color.Red.Sprint("deleted")
		}
		table.Append([]string{
			msg.ID.String()[:8],
			humanize.Time(msg.CreatedAt),
			msg.SenderID,
			string(msg.Type),
			preview(msg),
			reactions(msg),
			strings.Join(msg.ReadBy, ","),
			state,
		})
	}
	table.Render()
	if cursor != nil {
		color.Yellow.Printf("more messages before %s\n", *cursor)
	}
	return nil
}

func preview(msg domain.Message) string {
	if msg.IsDeleted {
		return ""
	}
	return msg.Preview()
}

func reactions(msg domain.Message) string {
	var parts []string
	for reactionType, count := range msg.ReactionCounts() {
		parts = append(parts, fmt.Sprintf("%s:%d", reactionType, count))
	}
	return strings.Join(parts, " ")
}

func printKeys(w io.Writer, db *badger.DB, prefix string, limit int) error {
	table := newTable(w, "Key", "Type", "Timestamp", "Entity ID", "Namespace", "Detail")
	count := 0
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes) && count < limit; it.Next() {
			item := it.Item()
			err := item.Value(func(v []byte) error {
				row := internal.DefaultMapper(string(item.Key()), v)
				table.Append([]string{row.Key, row.Type, row.Timestamp, row.EntityID, row.Namespace, row.Detail})
				return nil
			})
			if err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return err
	}
	table.Render()
	color.Cyan.Printf("%s keys under %q\n", humanize.Comma(int64(count)), prefix)
	return nil
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)
	return badger.Open(opts)
}
