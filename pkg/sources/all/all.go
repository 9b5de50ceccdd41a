// Package all registers every built-in source reader with the sources package.
package all

import (
	// Readers register themselves in init.
	_ "github.com/agentstation/omnisync/pkg/sources/csvsource"
	_ "github.com/agentstation/omnisync/pkg/sources/jsonsource"
)
