package email

const subjectOutreach = "We tried to reach you"
