package model

// Bot is the conferencing view of a pod whose name carries the bot prefix.
type Bot struct {
	PodID  string    `json:"podId"`
	Name   string    `json:"name"`
	Status PodStatus `json:"status"`
	Ready  bool      `json:"ready"`
}
