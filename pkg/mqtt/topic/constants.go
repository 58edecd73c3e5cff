package topic

// Wildcard matches one topic level. Filters built with it are subscribed once
// and dispatched by the level it stands for.
const Wildcard = "+"
