package registry

func tagArg(name string, literals []string, mutex string, required bool) ArgSpec {
	return ArgSpec{Name: name, Kinds: []ArgKind{KindTag}, Literals: literals, MutexGroup: mutex, Required: required}
}

func companionTagArg(name string, literals []string, mutex string, companion ArgKind) ArgSpec {
	c := companion
	return ArgSpec{Name: name, Kinds: []ArgKind{KindTag}, Literals: literals, MutexGroup: mutex, Companion: &c}
}

func stringArg(name string, required bool) ArgSpec {
	return ArgSpec{Name: name, Kinds: []ArgKind{KindString}, Required: required}
}

func stringListArg(name string, required bool) ArgSpec {
	return ArgSpec{Name: name, Kinds: []ArgKind{KindString, KindStringList}, Required: required}
}

func numberArg(name string, required bool) ArgSpec {
	return ArgSpec{Name: name, Kinds: []ArgKind{KindNumber}, Required: required}
}

func testArg(name string, required bool) ArgSpec {
	return ArgSpec{Name: name, Kinds: []ArgKind{KindTest}, Required: required}
}

func testListArg(name string, required bool) ArgSpec {
	return ArgSpec{Name: name, Kinds: []ArgKind{KindTestList}, Required: required}
}

// matchTypeArgs returns the shared :is/:contains/:matches/:regex/:count/:value
// mutually-exclusive group used by every comparison test.
func matchTypeArgs() []ArgSpec {
	return []ArgSpec{
		tagArg("match-type", []string{"is", "contains", "matches", "regex"}, "match-type", false),
		companionTagArg("match-type", []string{"count", "value"}, "match-type", KindString),
	}
}

func comparatorArg() ArgSpec {
	return companionTagArg("comparator", []string{"comparator"}, "", KindString)
}

func addressPartArgs() []ArgSpec {
	return []ArgSpec{
		tagArg("address-part", []string{"localpart", "domain", "all"}, "address-part", false),
		companionTagArg("address-part", []string{"user", "detail"}, "address-part", KindString),
	}
}

// builtinDefinitions returns the pre-populated command set of spec section 4.2.
func builtinDefinitions() []CommandDef {
	var defs []CommandDef

	// Controls
	defs = append(defs,
		CommandDef{
			Name:     "require",
			Category: Control,
			Args:     []ArgSpec{stringListArg("capabilities", true)},
		},
		CommandDef{
			Name:       "if",
			Category:   Control,
			Args:       []ArgSpec{testArg("test", true)},
			TakesBlock: true,
		},
		CommandDef{
			Name:       "elsif",
			Category:   Control,
			Args:       []ArgSpec{testArg("test", true)},
			TakesBlock: true,
		},
		CommandDef{
			Name:       "else",
			Category:   Control,
			TakesBlock: true,
		},
		CommandDef{
			Name:     "stop",
			Category: Control,
		},
	)

	// Actions
	defs = append(defs,
		CommandDef{Name: "keep", Category: Action},
		CommandDef{Name: "discard", Category: Action},
		CommandDef{
			Name:     "redirect",
			Category: Action,
			Args: []ArgSpec{
				tagArg("copy", []string{"copy"}, "", false),
				stringArg("address", true),
			},
		},
		CommandDef{
			Name:          "fileinto",
			Category:      Action,
			IsExtension:   true,
			ExtensionName: "fileinto",
			Args: []ArgSpec{
				tagArg("copy", []string{"copy"}, "", false),
				companionTagArg("flags", []string{"flags"}, "", KindStringList),
				stringArg("mailbox", true),
			},
		},
		CommandDef{
			Name:          "reject",
			Category:      Action,
			IsExtension:   true,
			ExtensionName: "reject",
			Args:          []ArgSpec{stringArg("reason", true)},
		},
		CommandDef{
			Name:          "ereject",
			Category:      Action,
			IsExtension:   true,
			ExtensionName: "ereject",
			Args:          []ArgSpec{stringArg("reason", true)},
		},
		CommandDef{
			Name:          "vacation",
			Category:      Action,
			IsExtension:   true,
			ExtensionName: "vacation",
			Args: []ArgSpec{
				numberArg("days", false),
				numberArg("seconds", false),
				companionTagArg("subject", []string{"subject"}, "", KindString),
				companionTagArg("from", []string{"from"}, "", KindString),
				companionTagArg("addresses", []string{"addresses"}, "", KindStringList),
				tagArg("mime", []string{"mime"}, "", false),
				companionTagArg("handle", []string{"handle"}, "", KindString),
				stringArg("reason", true),
			},
		},
		CommandDef{
			Name:          "setflag",
			Category:      Action,
			IsExtension:   true,
			ExtensionName: "imap4flags",
			Args:          []ArgSpec{stringListArg("flags", true)},
		},
		CommandDef{
			Name:          "addflag",
			Category:      Action,
			IsExtension:   true,
			ExtensionName: "imap4flags",
			Args:          []ArgSpec{stringListArg("flags", true)},
		},
		CommandDef{
			Name:          "removeflag",
			Category:      Action,
			IsExtension:   true,
			ExtensionName: "imap4flags",
			Args:          []ArgSpec{stringListArg("flags", true)},
		},
	)

	// Tests
	addrEnvArgs := func() []ArgSpec {
		var a []ArgSpec
		a = append(a, addressPartArgs()...)
		a = append(a, matchTypeArgs()...)
		a = append(a, comparatorArg())
		a = append(a, stringListArg("header-list", true), stringListArg("key-list", true))
		return a
	}

	defs = append(defs,
		CommandDef{Name: "address", Category: Test, Args: addrEnvArgs()},
		CommandDef{Name: "envelope", Category: Test, Args: addrEnvArgs()},
		CommandDef{
			Name:     "header",
			Category: Test,
			Args: append(append(matchTypeArgs(), comparatorArg()),
				stringListArg("header-names", true), stringListArg("key-list", true)),
		},
		CommandDef{
			Name:     "exists",
			Category: Test,
			Args:     []ArgSpec{stringListArg("header-names", true)},
		},
		CommandDef{
			Name:     "size",
			Category: Test,
			Args: []ArgSpec{
				tagArg("comparison", []string{"over", "under"}, "comparison", true),
				numberArg("limit", true),
			},
		},
		CommandDef{
			Name:     "body",
			Category: Test,
			Args: append(append([]ArgSpec{
				tagArg("transform", []string{"raw", "text"}, "transform", false),
				companionTagArg("transform", []string{"content"}, "transform", KindStringList),
			}, append(matchTypeArgs(), comparatorArg())...),
				stringListArg("key-list", true)),
		},
		CommandDef{Name: "true", Category: Test},
		CommandDef{Name: "false", Category: Test},
		CommandDef{
			Name:     "not",
			Category: Test,
			Args:     []ArgSpec{testArg("test", true)},
		},
		CommandDef{
			Name:     "anyof",
			Category: Test,
			Args:     []ArgSpec{testListArg("tests", true)},
		},
		CommandDef{
			Name:     "allof",
			Category: Test,
			Args:     []ArgSpec{testListArg("tests", true)},
		},
		CommandDef{
			Name:          "date",
			Category:      Test,
			IsExtension:   true,
			ExtensionName: "date",
			Args: append(append([]ArgSpec{
				companionTagArg("zone", []string{"zone"}, "", KindString),
			}, append(matchTypeArgs(), comparatorArg())...),
				stringArg("header-name", true), stringArg("date-part", true), stringListArg("key-list", true)),
		},
		CommandDef{
			Name:          "currentdate",
			Category:      Test,
			IsExtension:   true,
			ExtensionName: "date",
			Args: append(append([]ArgSpec{
				companionTagArg("zone", []string{"zone"}, "", KindString),
			}, append(matchTypeArgs(), comparatorArg())...),
				stringArg("date-part", true), stringListArg("key-list", true)),
		},
		CommandDef{
			Name:          "mailboxexists",
			Category:      Test,
			IsExtension:   true,
			ExtensionName: "mailbox",
			Args:          []ArgSpec{stringListArg("mailbox-names", true)},
		},
		CommandDef{
			Name:          "metadata",
			Category:      Test,
			IsExtension:   true,
			ExtensionName: "mboxmetadata",
			Args: append(append(matchTypeArgs(), comparatorArg()),
				stringArg("mailbox", true), stringArg("annotation-name", true), stringListArg("key-list", true)),
		},
		CommandDef{
			Name:          "metadataexists",
			Category:      Test,
			IsExtension:   true,
			ExtensionName: "mboxmetadata",
			Args:          []ArgSpec{stringArg("mailbox", true), stringListArg("annotation-names", true)},
		},
	)

	return defs
}
