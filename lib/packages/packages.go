// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package packages resolves Android app uids to package names using the
// package manager's flat database, /data/system/packages.list.
//
// Each line has the form
//
//	<package> <uid> <debuggable> <data-dir> <seinfo> <gids> ...
//
// where uid is the per-user-0 app id. Shared-uid packages appear on
// several lines with the same uid, so a lookup can return more than
// one name.
package packages

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DefaultPath is the package list on a stock Android system.
const DefaultPath = "/data/system/packages.list"

// perUserRange is the uid span allotted to each Android user. A uid of
// 1010123 is app id 10123 running for user 10.
const perUserRange = 100000

// AppID strips the Android user from uid.
func AppID(uid int32) int32 {
	return uid % perUserRange
}

// List is a parsed package list.
type List struct {
	byAppID map[int32][]string
}

// Load reads and parses the package list at path.
func Load(path string) (*List, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening package list: %w", err)
	}
	defer file.Close()

	list := &List{byAppID: make(map[int32][]string)}
	scanner := bufio.NewScanner(file)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		uid, err := strconv.ParseInt(fields[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: invalid uid %q", path, lineNumber, fields[1])
		}
		appID := AppID(int32(uid))
		list.byAppID[appID] = append(list.byAppID[appID], fields[0])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading package list: %w", err)
	}
	return list, nil
}

// ForUID returns the packages running under uid, for any Android user.
func (l *List) ForUID(uid int32) []string {
	return l.byAppID[AppID(uid)]
}
