package main

import (
	"os"
	"strings"
)

// serviceID возвращает имя сервиса для лейблов topologymetrics:
// имя владельца пода, выделенное из hostname.
func serviceID() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return "file-organizer"
	}
	return parseOwnerName(hostname)
}

// parseOwnerName выделяет имя Deployment или StatefulSet из hostname пода.
//   - Deployment: <name>-<hash ReplicaSet>-<суффикс из 5 символов>
//   - StatefulSet: <name>-<ordinal>
//
// Прочие имена возвращаются как есть.
func parseOwnerName(hostname string) string {
	parts := strings.Split(hostname, "-")
	n := len(parts)

	if n >= 3 && len(parts[n-1]) == 5 && isAlnum(parts[n-1]) &&
		len(parts[n-2]) >= 6 && len(parts[n-2]) <= 10 && isAlnum(parts[n-2]) {
		return strings.Join(parts[:n-2], "-")
	}
	if n >= 2 && isDigits(parts[n-1]) {
		return strings.Join(parts[:n-1], "-")
	}
	return hostname
}

func isAlnum(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return s != ""
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
