package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/revittco/anibridge/internal/secrets"
	"github.com/revittco/anibridge/internal/store/sqlite"
)

func cmdCredential(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: anibridge credential <set|show|delete> <provider> [key] [value]")
	}

	ctx := context.Background()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := sqlite.New(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	// Unlike serve, credential management never falls back to an ephemeral
	// key: values written with a throwaway key would be unreadable later.
	keyPath := cfg.AgeKeyPath
	var enc *secrets.AgeEncryptor
	if keyPath != "" {
		enc, err = secrets.NewAgeEncryptor(keyPath)
	} else {
		keyPath = cfg.DBPath + ".age"
		enc, err = secrets.EnsureKeyFile(keyPath)
	}
	if err != nil {
		return fmt.Errorf("open age key %s: %w", keyPath, err)
	}
	sm := secrets.NewManager(db, enc)

	sub := args[0]
	rest := args[1:]

	switch sub {
	case "set":
		if len(rest) < 3 {
			return fmt.Errorf("usage: anibridge credential set <provider> <key> <value>")
		}
		if err := sm.Put(ctx, rest[0], rest[1], rest[2]); err != nil {
			return fmt.Errorf("set credential: %w", err)
		}
		fmt.Printf("Credential %q set for provider %q\n", rest[1], rest[0])

	case "show":
		if len(rest) < 1 {
			return fmt.Errorf("usage: anibridge credential show <provider> [key]")
		}
		if len(rest) >= 2 {
			val, err := sm.Get(ctx, rest[0], rest[1])
			if err != nil {
				return fmt.Errorf("get credential: %w", err)
			}
			fmt.Println(val)
			return nil
		}
		fields, err := sm.All(ctx, rest[0])
		if err != nil {
			return fmt.Errorf("list credentials: %w", err)
		}
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("%s=%s\n", k, fields[k])
		}

	case "delete":
		if len(rest) < 1 {
			return fmt.Errorf("usage: anibridge credential delete <provider> [key]")
		}
		if len(rest) >= 2 {
			if err := sm.Delete(ctx, rest[0], rest[1]); err != nil {
				return fmt.Errorf("delete credential: %w", err)
			}
			fmt.Printf("Credential %q deleted from provider %q\n", rest[1], rest[0])
			return nil
		}
		if err := sm.DeleteAll(ctx, rest[0]); err != nil {
			return fmt.Errorf("delete credentials: %w", err)
		}
		fmt.Printf("All credentials deleted for provider %q\n", rest[0])

	default:
		return fmt.Errorf("unknown credential command: %s\nUsage: anibridge credential <set|show|delete>", sub)
	}

	return nil
}
