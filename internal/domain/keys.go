package domain

// KeyPrefix is the default namespace for every key chemdex writes.
const KeyPrefix = "chemdex:"
