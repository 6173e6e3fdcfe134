// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package native

import (
	"bufio"
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"time"

	"gitlab.com/tozd/go/errors"
)

const (
	trashInfoHeader    = "[Trash Info]"
	trashInfoExt       = ".trashinfo"
	deletionDateLayout = "2006-01-02T15:04:05"

	// DeletionDate is written with milliseconds; deletions within one second stay distinct
	deletionDateWriteLayout = "2006-01-02T15:04:05.000"
)

// trashInfo is the parsed form of a .trashinfo file
type trashInfo struct {
	Path         string
	DeletionDate time.Time
}

func (ti trashInfo) marshal() []byte {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, trashInfoHeader)
	fmt.Fprintf(&buf, "Path=%s\n", (&url.URL{Path: ti.Path}).EscapedPath())
	fmt.Fprintf(&buf, "DeletionDate=%s\n", ti.DeletionDate.Local().Format(deletionDateWriteLayout))
	return buf.Bytes()
}

// parseTrashInfo reads Path and DeletionDate from the [Trash Info] group.
// Fractional seconds in DeletionDate are accepted.
func parseTrashInfo(data []byte, loc *time.Location) (trashInfo, error) {
	var (
		ti       trashInfo
		inGroup  bool
		havePath bool
		haveDate bool
	)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			inGroup = line == trashInfoHeader
			continue
		}
		if !inGroup {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "Path":
			p, err := url.PathUnescape(strings.TrimSpace(value))
			if err != nil {
				return trashInfo{}, errors.Errorf("unescaping path: %w", err)
			}
			ti.Path = p
			havePath = true
		case "DeletionDate":
			d, err := time.ParseInLocation(deletionDateLayout, strings.TrimSpace(value), loc)
			if err != nil {
				return trashInfo{}, errors.Errorf("parsing deletion date: %w", err)
			}
			ti.DeletionDate = d
			haveDate = true
		}
	}
	if err := scanner.Err(); err != nil {
		return trashInfo{}, errors.Errorf("reading trash info: %w", err)
	}
	if !havePath {
		return trashInfo{}, errors.Errorf("trash info has no Path")
	}
	if !haveDate {
		return trashInfo{}, errors.Errorf("trash info has no DeletionDate")
	}
	return ti, nil
}
